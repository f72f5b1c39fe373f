package handlers

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"taxbridge/internal/models"
	"taxbridge/internal/realtime"
	"taxbridge/internal/utils"
)

// Masked personas: admin messages never display an individual admin's
// identity, and forwarded messages display the persona of the thread they
// land in.
const (
	PersonaClientThread = "TaxBridge Support"
	PersonaCAThread     = "TaxBridge Desk"
)

type ChatHandler struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	RDB       *redis.Client
	JWTSecret string
	UploadDir string
	BaseURL   string
}

func NewChatHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client, jwtSecret, uploadDir, baseURL string) *ChatHandler {
	return &ChatHandler{DB: db, Hub: hub, RDB: rdb, JWTSecret: jwtSecret, UploadDir: uploadDir, BaseURL: baseURL}
}

type MessageResponse struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	Thread      string    `json:"thread"`
	SenderRole  string    `json:"sender_role"`
	DisplayName string    `json:"display_name"`
	Text        string    `json:"text"`
	FileURL     string    `json:"file_url,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	IsForwarded bool      `json:"is_forwarded,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Provenance, admin eyes only.
	OriginalSenderID   string `json:"original_sender_id,omitempty"`
	OriginalSenderRole string `json:"original_sender_role,omitempty"`
}

// displayName picks what the reader sees as the author. Admin-authored (and
// forwarded) messages show the thread's persona, never the admin's name.
func displayName(msg *models.Message) string {
	if msg.SenderRole == models.RoleAdmin {
		if msg.Thread == models.ThreadCA {
			return PersonaCAThread
		}
		return PersonaClientThread
	}
	if msg.Sender != nil {
		return msg.Sender.Name
	}
	return string(msg.SenderRole)
}

func toMessageResponse(msg *models.Message, viewer *models.User) MessageResponse {
	resp := MessageResponse{
		ID:          msg.ID.String(),
		RequestID:   msg.RequestID.String(),
		Thread:      string(msg.Thread),
		SenderRole:  string(msg.SenderRole),
		DisplayName: displayName(msg),
		Text:        msg.Text,
		FileURL:     msg.FileURL,
		FileName:    msg.FileName,
		IsForwarded: msg.ForwardedFromID != nil,
		CreatedAt:   msg.CreatedAt,
	}
	if viewer != nil && viewer.Role == models.RoleAdmin && msg.OriginalSenderID != nil {
		resp.OriginalSenderID = msg.OriginalSenderID.String()
		resp.OriginalSenderRole = string(msg.OriginalSenderRole)
	}
	return resp
}

// canReadThread is the double-blind read rule: admin sees everything, each
// party sees only its own bridge thread plus the workspace once unlocked.
func canReadThread(u *models.User, req *models.ServiceRequest, thread models.Thread) bool {
	if u.Role == models.RoleAdmin {
		return true
	}
	switch thread {
	case models.ThreadClient:
		return u.Role == models.RoleClient && req.ClientID == u.ID
	case models.ThreadCA:
		return u.Role == models.RoleCA && req.CAID != nil && *req.CAID == u.ID
	case models.ThreadWorkspace:
		if !req.IsWorkspaceUnlocked {
			return false
		}
		if u.Role == models.RoleClient {
			return req.ClientID == u.ID
		}
		return u.Role == models.RoleCA && req.CAID != nil && *req.CAID == u.ID
	default:
		return false
	}
}

// canPostThread additionally keeps admin out of the workspace (observer only)
// and blocks everyone until the workspace is paid for and unlocked.
func canPostThread(u *models.User, req *models.ServiceRequest, thread models.Thread) error {
	switch thread {
	case models.ThreadClient:
		if u.Role == models.RoleAdmin || (u.Role == models.RoleClient && req.ClientID == u.ID) {
			return nil
		}
		return models.ErrForbidden
	case models.ThreadCA:
		if u.Role == models.RoleAdmin {
			return nil
		}
		if u.Role == models.RoleCA && req.CAID != nil && *req.CAID == u.ID {
			return nil
		}
		return models.ErrForbidden
	case models.ThreadWorkspace:
		if u.Role == models.RoleAdmin {
			// Admin reads the workspace but never writes into it.
			return models.ErrForbidden
		}
		if !req.IsWorkspaceUnlocked {
			return models.ErrWorkspaceLocked
		}
		if u.Role == models.RoleClient && req.ClientID == u.ID {
			return nil
		}
		if u.Role == models.RoleCA && req.CAID != nil && *req.CAID == u.ID {
			return nil
		}
		return models.ErrForbidden
	default:
		return models.ErrForbidden
	}
}

// isThreadRecipient says whether reading the thread should mark its messages
// read. Only participants count: an admin observing the workspace must not
// clear the parties' unread indicators.
func isThreadRecipient(u *models.User, req *models.ServiceRequest, thread models.Thread) bool {
	return canPostThread(u, req, thread) == nil
}

func (h *ChatHandler) loadRequest(c *fiber.Ctx) (*models.ServiceRequest, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fmt.Errorf("invalid request ID")
	}
	var sr models.ServiceRequest
	if err := h.DB.First(&sr, "id = ?", id).Error; err != nil {
		return nil, models.ErrNotFound
	}
	return &sr, nil
}

// GetMessages returns one thread of a request, oldest first.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	sr, err := h.loadRequest(c)
	if err != nil {
		if err == models.ErrNotFound {
			return respondDomainErr(c, err, "")
		}
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	thread := models.Thread(c.Query("thread", string(models.ThreadClient)))
	if !models.ValidThread(thread) {
		return fail(c, fiber.StatusBadRequest, "invalid thread")
	}
	if !canReadThread(actor, sr, thread) {
		return fail(c, fiber.StatusForbidden, "access denied")
	}

	var messages []models.Message
	if err := h.DB.Preload("Sender").
		Where("request_id = ? AND thread = ?", sr.ID, thread).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		log.Println("chat: fetch messages:", err)
		return fail(c, fiber.StatusInternalServerError, "failed to fetch messages")
	}

	if isThreadRecipient(actor, sr, thread) {
		if err := h.DB.Model(&models.Message{}).
			Where("request_id = ? AND thread = ? AND sender_id != ? AND is_read = false", sr.ID, thread, actor.ID).
			Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()}).Error; err != nil {
			log.Println("chat: mark read:", err)
		}
	}

	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toMessageResponse(&messages[i], actor))
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

type SendMessageReq struct {
	Text        string `json:"text"`
	Thread      string `json:"thread"`       // client / ca / workspace
	IntendedFor string `json:"intended_for"` // admin only: client / ca, picks the bridge thread
	FileURL     string `json:"file_url"`
	FileName    string `json:"file_name"`
}

// Send stores a message with its body redacted server-side, then fans the
// snapshot out. Publish failures never fail the send.
func (h *ChatHandler) Send(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	sr, err := h.loadRequest(c)
	if err != nil {
		if err == models.ErrNotFound {
			return respondDomainErr(c, err, "")
		}
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	var req SendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Text) == "" && req.FileURL == "" {
		return fail(c, fiber.StatusBadRequest, "text or file is required")
	}

	thread := resolveThread(actor, sr, req)
	if !models.ValidThread(thread) {
		return fail(c, fiber.StatusBadRequest, "invalid thread")
	}
	if err := canPostThread(actor, sr, thread); err != nil {
		return respondDomainErr(c, err, sr.Status)
	}

	msg := models.Message{
		RequestID:  sr.ID,
		SenderID:   actor.ID,
		SenderRole: actor.Role,
		Thread:     thread,
		Text:       utils.RedactContacts(req.Text),
		FileURL:    req.FileURL,
		FileName:   req.FileName,
	}
	if err := h.DB.Create(&msg).Error; err != nil {
		log.Println("chat: create message:", err)
		return fail(c, fiber.StatusInternalServerError, "failed to send message")
	}
	msg.Sender = actor

	h.fanOut(sr, &msg)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": toMessageResponse(&msg, actor)})
}

// resolveThread picks the thread a message lands in. Non-admin senders land
// in their own bridge thread unless they explicitly target the workspace;
// admins route with intended_for.
func resolveThread(u *models.User, req *models.ServiceRequest, in SendMessageReq) models.Thread {
	if in.Thread == string(models.ThreadWorkspace) {
		return models.ThreadWorkspace
	}
	switch u.Role {
	case models.RoleAdmin:
		if in.IntendedFor == "ca" {
			return models.ThreadCA
		}
		return models.ThreadClient
	case models.RoleCA:
		return models.ThreadCA
	default:
		return models.ThreadClient
	}
}

// fanOut emits receive_message to exactly the sockets allowed to see the
// thread, plus a redis notification for the offline counterparty.
func (h *ChatHandler) fanOut(sr *models.ServiceRequest, msg *models.Message) {
	snapshot := toMessageResponse(msg, nil)

	switch msg.Thread {
	case models.ThreadClient:
		h.Hub.SendToUser(sr.ClientID, realtime.EventReceiveMessage, snapshot)
		h.Hub.EmitToRole(models.RoleAdmin, realtime.EventReceiveMessage, snapshot)
		if msg.SenderRole == models.RoleAdmin {
			h.notify(sr.ClientID, fiber.Map{"type": "chat_message", "request_id": sr.ID.String()})
		}
	case models.ThreadCA:
		if sr.CAID != nil {
			h.Hub.SendToUser(*sr.CAID, realtime.EventReceiveMessage, snapshot)
			if msg.SenderRole == models.RoleAdmin {
				h.notify(*sr.CAID, fiber.Map{"type": "chat_message", "request_id": sr.ID.String()})
			}
		}
		h.Hub.EmitToRole(models.RoleAdmin, realtime.EventReceiveMessage, snapshot)
	case models.ThreadWorkspace:
		h.Hub.EmitToRoom(realtime.RequestRoom(sr.ID), realtime.EventReceiveMessage, snapshot)
		recipient := sr.ClientID
		if msg.SenderID == sr.ClientID && sr.CAID != nil {
			recipient = *sr.CAID
		}
		h.notify(recipient, fiber.Map{"type": "chat_message", "request_id": sr.ID.String()})
	}
}

func (h *ChatHandler) notify(userID uuid.UUID, payload fiber.Map) {
	if h.RDB == nil {
		return
	}
	if err := realtime.PublishUserNotification(context.Background(), h.RDB, userID, payload); err != nil {
		log.Println("chat: notify:", err)
	}
}

type ForwardReq struct {
	MessageID string `json:"message_id"`
}

// Forward is the admin bridging act: copy an already-redacted message from
// one pre-unlock thread into the other, stamped with provenance but shown
// under the target thread's persona.
func (h *ChatHandler) Forward(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin {
		return fail(c, fiber.StatusForbidden, "access denied")
	}

	sr, err := h.loadRequest(c)
	if err != nil {
		if err == models.ErrNotFound {
			return respondDomainErr(c, err, "")
		}
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	var req ForwardReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	msgID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid message ID")
	}

	var src models.Message
	if err := h.DB.First(&src, "id = ? AND request_id = ?", msgID, sr.ID).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	var target models.Thread
	switch src.Thread {
	case models.ThreadClient:
		target = models.ThreadCA
	case models.ThreadCA:
		target = models.ThreadClient
	default:
		return fail(c, fiber.StatusBadRequest, "only bridge-thread messages can be forwarded")
	}

	srcID := src.ID
	origSender := src.SenderID
	fwd := models.Message{
		RequestID:          sr.ID,
		SenderID:           actor.ID,
		SenderRole:         models.RoleAdmin,
		Thread:             target,
		Text:               src.Text, // already redacted at original store time
		FileURL:            src.FileURL,
		FileName:           src.FileName,
		ForwardedFromID:    &srcID,
		OriginalSenderID:   &origSender,
		OriginalSenderRole: src.SenderRole,
	}
	if err := h.DB.Create(&fwd).Error; err != nil {
		log.Println("chat: forward:", err)
		return fail(c, fiber.StatusInternalServerError, "failed to forward message")
	}

	recordActivity(h.DB, &sr.ID, &actor.ID, "message_forwarded",
		fmt.Sprintf("admin bridged a message into the %s thread", target), nil)

	h.fanOut(sr, &fwd)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": toMessageResponse(&fwd, actor)})
}

// UploadAttachment stores a file locally and returns a durable URL+name pair
// the sender puts on the next message.
func (h *ChatHandler) UploadAttachment(c *fiber.Ctx) error {
	if _, err := fetchActor(h.DB, c); err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "file is required")
	}
	if fileHeader.Size > 10<<20 {
		return fail(c, fiber.StatusBadRequest, "file too large (max 10MB)")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	name := fmt.Sprintf("%s%s", uuid.New().String(), ext)
	dir := filepath.Join(h.UploadDir, "attachments")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to prepare upload dir")
	}
	if err := c.SaveFile(fileHeader, filepath.Join(dir, name)); err != nil {
		log.Println("chat: save attachment:", err)
		return fail(c, fiber.StatusInternalServerError, "failed to save file")
	}

	url := "/uploads/attachments/" + name
	if h.BaseURL != "" {
		url = strings.TrimRight(h.BaseURL, "/") + url
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"file_url":  url,
			"file_name": fileHeader.Filename,
		},
	})
}

type wsJoinFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

// WebSocketHandler authenticates the socket from a token query param, tracks
// presence, and lets the client join request rooms it can actually see.
func (h *ChatHandler) WebSocketHandler(c *websocket.Conn) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.Close()
		return
	}
	claims, err := utils.ParseJWT(h.JWTSecret, tokenStr)
	if err != nil {
		log.Println("ws: invalid token:", err)
		c.Close()
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.Close()
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil || !user.IsActive {
		c.Close()
		return
	}

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: user.ID,
		Role:   user.Role,
		Conn:   realtime.NewWebSocketConn(c),
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	h.setOnline(user.ID, true)
	defer func() {
		h.Hub.UnregisterClient(client)
		h.setOnline(user.ID, false)
	}()

	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		var frame wsJoinFrame
		if err := c.ReadJSON(&frame); err != nil {
			break
		}
		switch frame.Type {
		case "join":
			reqID, err := uuid.Parse(frame.RequestID)
			if err != nil {
				continue
			}
			var sr models.ServiceRequest
			if err := h.DB.First(&sr, "id = ?", reqID).Error; err != nil {
				continue
			}
			if canViewRequest(&user, &sr) {
				h.Hub.JoinRoom(client, realtime.RequestRoom(reqID))
			}
		case "leave":
			if reqID, err := uuid.Parse(frame.RequestID); err == nil {
				h.Hub.LeaveRoom(client, realtime.RequestRoom(reqID))
			}
		case "pong":
		}
	}
}

// setOnline keeps the DB flag and the redis presence key in sync with the
// socket. Both writes are best-effort.
func (h *ChatHandler) setOnline(userID uuid.UUID, online bool) {
	if err := h.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("is_online", online).Error; err != nil {
		log.Println("ws: presence db:", err)
	}
	if h.RDB != nil {
		ctx := context.Background()
		var err error
		if online {
			err = realtime.SetPresence(ctx, h.RDB, userID)
		} else {
			err = realtime.ClearPresence(ctx, h.RDB, userID)
		}
		if err != nil {
			log.Println("ws: presence redis:", err)
		}
	}
	h.Hub.EmitToRole(models.RoleAdmin, realtime.EventPresenceChanged, fiber.Map{
		"user_id": userID.String(),
		"online":  online,
	})
}
