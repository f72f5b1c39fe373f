package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"taxbridge/internal/models"
)

// Event names published to rooms. Payloads are snapshots: listeners treat them
// as a wake-up signal and re-fetch authoritative state over HTTP.
const (
	EventNewPendingJob     = "new_pending_job"
	EventNewPendingPayment = "new_pending_payment"
	EventJobStatusUpdated  = "job_status_updated"
	EventNewBidReceived    = "new_bid_received"
	EventAccountVerified   = "account_verified"
	EventWorkspaceUnlocked = "workspace_unlocked"
	EventReceiveMessage    = "receive_message"
	EventPresenceChanged   = "presence_changed"
)

// RequestRoom returns the room id every participant of a request joins.
func RequestRoom(requestID uuid.UUID) string {
	return "request:" + requestID.String()
}

// RoleRoom returns the population-wide channel for a role. Every socket is
// auto-joined to its own role's room.
func RoleRoom(role models.Role) string {
	return "role:" + string(role)
}

type Client struct {
	ID     string
	UserID uuid.UUID
	Role   models.Role
	Conn   *WebSocketConn
	Send   chan []byte
}

type Hub struct {
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// RegisterClient makes the socket addressable before it returns, so a join
// frame arriving right after the handshake always finds the client.
func (h *Hub) RegisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	// Everyone listens on their own role channel.
	room := RoleRoom(client.Role)
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][client.ID] = client
	log.Printf("realtime: client registered %s (user %s, %s)", client.ID, client.UserID, client.Role)
}

func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	old, ok := h.clients[client.ID]
	if !ok {
		return
	}
	delete(h.clients, client.ID)
	for room, members := range h.rooms {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(old.Send)
	log.Printf("realtime: client unregistered %s", client.ID)
}

// JoinRoom adds the client to a room. Access checks happen at the caller
// (the websocket handler verifies room membership against the DB).
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][client.ID] = client
}

func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func envelope(event string, data interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type": event,
		"data": data,
	})
}

// EmitToRoom publishes an event to every socket in a room. Best-effort: a
// slow client is skipped, never blocked on.
func (h *Hub) EmitToRoom(room, event string, data interface{}) {
	payload, err := envelope(event, data)
	if err != nil {
		log.Printf("realtime: marshal %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.rooms[room] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

// EmitToRole publishes to the population-wide channel for a role.
func (h *Hub) EmitToRole(role models.Role, event string, data interface{}) {
	h.EmitToRoom(RoleRoom(role), event, data)
}

// SendToUser targets every open socket of one user.
func (h *Hub) SendToUser(userID uuid.UUID, event string, data interface{}) {
	payload, err := envelope(event, data)
	if err != nil {
		log.Printf("realtime: marshal %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.UserID == userID {
			select {
			case client.Send <- payload:
			default:
			}
		}
	}
}
