package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"taxbridge/internal/models"
	"taxbridge/internal/realtime"
	"taxbridge/internal/services/mailer"
	"taxbridge/internal/workflow"
)

type RequestHandler struct {
	DB   *gorm.DB
	Hub  *realtime.Hub
	RDB  *redis.Client
	Mail *mailer.Mailer
}

func NewRequestHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client, mail *mailer.Mailer) *RequestHandler {
	return &RequestHandler{DB: db, Hub: hub, RDB: rdb, Mail: mail}
}

type UserMini struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsVerified bool   `json:"is_verified,omitempty"`
}

type RequestResponse struct {
	ID                  string    `json:"id"`
	ClientID            string    `json:"client_id"`
	CAID                *string   `json:"ca_id,omitempty"`
	ServiceType         string    `json:"service_type"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Budget              int64     `json:"budget"`
	FinalPrice          *int64    `json:"final_price,omitempty"`
	Status              string    `json:"status"`
	IsWorkspaceUnlocked bool      `json:"is_workspace_unlocked"`
	IsArchived          bool      `json:"is_archived"`
	CreatedAt           time.Time `json:"created_at"`

	Client *UserMini `json:"client,omitempty"`
	CA     *UserMini `json:"ca,omitempty"`
}

// toRequestResponse elides party identities the viewer must not see: a CA
// browsing live jobs never learns who the client is, and a client never
// learns the CA's identity beyond what the bid card exposes.
func toRequestResponse(req *models.ServiceRequest, viewer *models.User) RequestResponse {
	resp := RequestResponse{
		ID:                  req.ID.String(),
		ClientID:            req.ClientID.String(),
		ServiceType:         req.ServiceType,
		Title:               req.Title,
		Description:         req.Description,
		Budget:              req.Budget,
		FinalPrice:          req.FinalPrice,
		Status:              string(req.Status),
		IsWorkspaceUnlocked: req.IsWorkspaceUnlocked,
		IsArchived:          req.IsArchived,
		CreatedAt:           req.CreatedAt,
	}
	if req.CAID != nil {
		s := req.CAID.String()
		resp.CAID = &s
	}

	isAdmin := viewer.Role == models.RoleAdmin
	isOwner := viewer.ID == req.ClientID
	isAssigned := req.CAID != nil && viewer.ID == *req.CAID

	if req.Client != nil && (isAdmin || isOwner || (isAssigned && req.IsWorkspaceUnlocked)) {
		resp.Client = &UserMini{ID: req.Client.ID.String(), Name: req.Client.Name}
	}
	if req.CA != nil && (isAdmin || isAssigned || (isOwner && req.CAID != nil)) {
		resp.CA = &UserMini{ID: req.CA.ID.String(), Name: req.CA.Name, IsVerified: req.CA.IsVerified}
	}
	return resp
}

type CreateRequestReq struct {
	ServiceType string `json:"service_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Budget      int64  `json:"budget"`
}

// Create submits a new request; it enters the moderation queue as
// pending_approval and admins are woken up over their broadcast channel.
func (h *RequestHandler) Create(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	var req CreateRequestReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	errs := FieldErrors{}
	if strings.TrimSpace(req.Title) == "" {
		errs.Add("title", "Title is required")
	}
	if strings.TrimSpace(req.ServiceType) == "" {
		errs.Add("service_type", "Service type is required")
	}
	if req.Budget <= 0 {
		errs.Add("budget", "Budget must be positive")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	sr := models.ServiceRequest{
		ClientID:    actor.ID,
		ServiceType: strings.TrimSpace(req.ServiceType),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Budget:      req.Budget,
		Status:      models.StatusPendingApproval,
	}
	if err := h.DB.Create(&sr).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to create request")
	}

	recordActivity(h.DB, &sr.ID, &actor.ID, "request_submitted",
		fmt.Sprintf("%s submitted %q", actor.Name, sr.Title),
		map[string]interface{}{"budget": sr.Budget, "service_type": sr.ServiceType})

	h.Hub.EmitToRole(models.RoleAdmin, realtime.EventNewPendingJob, toRequestResponse(&sr, actor))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    toRequestResponse(&sr, actor),
	})
}

// ListMine returns the caller's requests: submitted ones for a client,
// assigned ones for a CA.
func (h *RequestHandler) ListMine(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	q := h.DB.Preload("Client").Preload("CA").Order("created_at DESC")
	switch actor.Role {
	case models.RoleClient:
		q = q.Where("client_id = ?", actor.ID)
	case models.RoleCA:
		q = q.Where("ca_id = ?", actor.ID)
	default:
		return fail(c, fiber.StatusForbidden, "forbidden")
	}

	var reqs []models.ServiceRequest
	if err := q.Find(&reqs).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to fetch requests")
	}

	out := make([]RequestResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, toRequestResponse(&reqs[i], actor))
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

// ListOpen returns live requests a verified CA can bid on. Client identity is
// elided; the CA sees only the job content.
func (h *RequestHandler) ListOpen(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}
	if !actor.IsVerified {
		return respondDomainErr(c, models.ErrUnverifiedCA, "")
	}

	var reqs []models.ServiceRequest
	if err := h.DB.
		Where("status = ?", models.StatusLive).
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to fetch requests")
	}

	out := make([]RequestResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, toRequestResponse(&reqs[i], actor))
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

func (h *RequestHandler) Get(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request ID")
	}

	var sr models.ServiceRequest
	if err := h.DB.Preload("Client").Preload("CA").First(&sr, "id = ?", id).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	if !canViewRequest(actor, &sr) {
		return fail(c, fiber.StatusForbidden, "access denied")
	}
	return c.JSON(fiber.Map{"success": true, "data": toRequestResponse(&sr, actor)})
}

func canViewRequest(u *models.User, req *models.ServiceRequest) bool {
	switch u.Role {
	case models.RoleAdmin:
		return true
	case models.RoleClient:
		return req.ClientID == u.ID
	case models.RoleCA:
		if req.CAID != nil && *req.CAID == u.ID {
			return true
		}
		// Live jobs are browseable by verified CAs.
		return req.Status == models.StatusLive && u.IsVerified
	default:
		return false
	}
}

// MarkComplete is the assigned CA declaring the work done.
func (h *RequestHandler) MarkComplete(c *fiber.Ctx) error {
	return h.clientOrCATransition(c, models.StatusCompleted, "work_submitted", "marked the work complete")
}

// ApproveWork is the client accepting the finished work.
func (h *RequestHandler) ApproveWork(c *fiber.Ctx) error {
	return h.clientOrCATransition(c, models.StatusReadyForPayout, "work_approved", "approved the work")
}

// RejectWork sends the request back to active for another round; the
// workspace stays unlocked so the conversation continues.
func (h *RequestHandler) RejectWork(c *fiber.Ctx) error {
	return h.clientOrCATransition(c, models.StatusActive, "work_rejected", "requested changes")
}

func (h *RequestHandler) clientOrCATransition(c *fiber.Ctx, next models.RequestStatus, action, detail string) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request ID")
	}

	var sr models.ServiceRequest
	if err := h.DB.Preload("Client").Preload("CA").First(&sr, "id = ?", id).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	if err := runTransition(h.DB, &sr, workflow.Actor{ID: actor.ID, Role: actor.Role}, next, nil); err != nil {
		return respondDomainErr(c, err, sr.Status)
	}

	recordActivity(h.DB, &sr.ID, &actor.ID, action,
		fmt.Sprintf("%s %s on %q", actor.Name, detail, sr.Title), nil)
	h.broadcastStatus(&sr)

	return c.JSON(fiber.Map{"success": true, "data": toRequestResponse(&sr, actor)})
}

// broadcastStatus wakes the request room after a committed transition. The
// payload is a snapshot; listeners re-fetch rather than trusting it.
func (h *RequestHandler) broadcastStatus(sr *models.ServiceRequest) {
	h.Hub.EmitToRoom(realtime.RequestRoom(sr.ID), realtime.EventJobStatusUpdated, fiber.Map{
		"request_id": sr.ID.String(),
		"status":     sr.Status,
	})
}
