package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"taxbridge/internal/models"
)

func newTestClient(role models.Role) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: uuid.New(),
		Role:   role,
		Send:   make(chan []byte, 8),
	}
}

func recv(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case b := <-c.Send:
		var m map[string]interface{}
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("no payload received")
		return nil
	}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.Send:
		t.Fatalf("unexpected payload: %s", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_RequestRoomScoping(t *testing.T) {
	h := NewHub()

	client := newTestClient(models.RoleClient)
	ca := newTestClient(models.RoleCA)
	outsider := newTestClient(models.RoleClient)
	h.RegisterClient(client)
	h.RegisterClient(ca)
	h.RegisterClient(outsider)

	room := RequestRoom(uuid.New())
	h.JoinRoom(client, room)
	h.JoinRoom(ca, room)

	h.EmitToRoom(room, EventJobStatusUpdated, map[string]string{"status": "active"})

	for _, c := range []*Client{client, ca} {
		m := recv(t, c)
		if m["type"] != EventJobStatusUpdated {
			t.Errorf("got type %v, want %s", m["type"], EventJobStatusUpdated)
		}
	}
	expectNothing(t, outsider)
}

func TestHub_JoinImmediatelyAfterRegister(t *testing.T) {
	h := NewHub()

	c := newTestClient(models.RoleClient)
	h.RegisterClient(c)

	// The very next frame after the handshake may be a join; it must land.
	room := RequestRoom(uuid.New())
	h.JoinRoom(c, room)

	h.EmitToRoom(room, EventReceiveMessage, map[string]string{"id": "m1"})
	m := recv(t, c)
	if m["type"] != EventReceiveMessage {
		t.Fatalf("got type %v, want %s", m["type"], EventReceiveMessage)
	}
}

func TestHub_RoleChannelsAutoJoined(t *testing.T) {
	h := NewHub()

	admin := newTestClient(models.RoleAdmin)
	ca := newTestClient(models.RoleCA)
	h.RegisterClient(admin)
	h.RegisterClient(ca)

	h.EmitToRole(models.RoleAdmin, EventNewPendingJob, map[string]string{"id": "x"})

	m := recv(t, admin)
	if m["type"] != EventNewPendingJob {
		t.Errorf("admin got %v, want %s", m["type"], EventNewPendingJob)
	}
	expectNothing(t, ca)

	h.EmitToRole(models.RoleCA, EventNewPendingJob, map[string]string{"id": "y"})
	recv(t, ca)
	expectNothing(t, admin)
}

func TestHub_SendToUserHitsAllSockets(t *testing.T) {
	h := NewHub()

	userID := uuid.New()
	a := newTestClient(models.RoleCA)
	a.UserID = userID
	b := newTestClient(models.RoleCA)
	b.UserID = userID
	other := newTestClient(models.RoleCA)
	h.RegisterClient(a)
	h.RegisterClient(b)
	h.RegisterClient(other)

	h.SendToUser(userID, EventAccountVerified, map[string]string{"user_id": userID.String()})

	recv(t, a)
	recv(t, b)
	expectNothing(t, other)
}

func TestHub_UnregisterLeavesRooms(t *testing.T) {
	h := NewHub()

	c := newTestClient(models.RoleClient)
	h.RegisterClient(c)
	room := RequestRoom(uuid.New())
	h.JoinRoom(c, room)

	h.UnregisterClient(c)

	// Emitting after unregister must not panic or deliver.
	h.EmitToRoom(room, EventReceiveMessage, map[string]string{})

	if _, ok := <-c.Send; ok {
		t.Fatal("expected Send channel closed after unregister")
	}

	// A second unregister of the same socket is a no-op.
	h.UnregisterClient(c)
}

func TestHub_SlowClientSkipped(t *testing.T) {
	h := NewHub()

	slow := newTestClient(models.RoleClient)
	slow.Send = make(chan []byte) // no buffer, nobody reading
	h.RegisterClient(slow)
	room := RequestRoom(uuid.New())
	h.JoinRoom(slow, room)

	done := make(chan struct{})
	go func() {
		h.EmitToRoom(room, EventReceiveMessage, map[string]string{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EmitToRoom blocked on a slow client")
	}
}
