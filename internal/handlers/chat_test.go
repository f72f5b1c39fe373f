package handlers

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"taxbridge/internal/models"
)

func testParties() (client, ca, otherCA, admin *models.User, sr *models.ServiceRequest) {
	client = &models.User{ID: uuid.New(), Name: "Asha", Role: models.RoleClient}
	ca = &models.User{ID: uuid.New(), Name: "Ravi", Role: models.RoleCA, IsVerified: true}
	otherCA = &models.User{ID: uuid.New(), Name: "Meera", Role: models.RoleCA, IsVerified: true}
	admin = &models.User{ID: uuid.New(), Name: "Ops", Role: models.RoleAdmin}

	caID := ca.ID
	sr = &models.ServiceRequest{
		ID:       uuid.New(),
		Title:    "GST annual filing",
		ClientID: client.ID,
		CAID:     &caID,
		Status:   models.StatusAwaitingPayment,
	}
	return
}

func TestCanReadThread(t *testing.T) {
	client, ca, otherCA, admin, sr := testParties()

	cases := []struct {
		name   string
		user   *models.User
		thread models.Thread
		want   bool
	}{
		{"client reads own bridge", client, models.ThreadClient, true},
		{"client cannot read ca bridge", client, models.ThreadCA, false},
		{"ca reads own bridge", ca, models.ThreadCA, true},
		{"ca cannot read client bridge", ca, models.ThreadClient, false},
		{"other ca reads nothing", otherCA, models.ThreadCA, false},
		{"admin reads client bridge", admin, models.ThreadClient, true},
		{"admin reads ca bridge", admin, models.ThreadCA, true},
		{"admin reads workspace", admin, models.ThreadWorkspace, true},
		{"client workspace locked", client, models.ThreadWorkspace, false},
		{"ca workspace locked", ca, models.ThreadWorkspace, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := canReadThread(tc.user, sr, tc.thread); got != tc.want {
				t.Fatalf("canReadThread = %v, want %v", got, tc.want)
			}
		})
	}

	sr.IsWorkspaceUnlocked = true
	if !canReadThread(client, sr, models.ThreadWorkspace) {
		t.Fatal("client should read unlocked workspace")
	}
	if !canReadThread(ca, sr, models.ThreadWorkspace) {
		t.Fatal("assigned ca should read unlocked workspace")
	}
	if canReadThread(otherCA, sr, models.ThreadWorkspace) {
		t.Fatal("unassigned ca must not read the workspace")
	}
}

func TestCanPostThread(t *testing.T) {
	client, ca, otherCA, admin, sr := testParties()

	if err := canPostThread(client, sr, models.ThreadClient); err != nil {
		t.Fatalf("client post to own bridge: %v", err)
	}
	if err := canPostThread(admin, sr, models.ThreadClient); err != nil {
		t.Fatalf("admin post to client bridge: %v", err)
	}
	if err := canPostThread(ca, sr, models.ThreadCA); err != nil {
		t.Fatalf("ca post to own bridge: %v", err)
	}
	if err := canPostThread(client, sr, models.ThreadCA); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("client posting to ca bridge: got %v, want ErrForbidden", err)
	}
	if err := canPostThread(otherCA, sr, models.ThreadCA); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("unassigned ca posting: got %v, want ErrForbidden", err)
	}

	// workspace still locked
	if err := canPostThread(client, sr, models.ThreadWorkspace); !errors.Is(err, models.ErrWorkspaceLocked) {
		t.Fatalf("locked workspace: got %v, want ErrWorkspaceLocked", err)
	}

	sr.IsWorkspaceUnlocked = true
	if err := canPostThread(client, sr, models.ThreadWorkspace); err != nil {
		t.Fatalf("client post to unlocked workspace: %v", err)
	}
	if err := canPostThread(ca, sr, models.ThreadWorkspace); err != nil {
		t.Fatalf("ca post to unlocked workspace: %v", err)
	}
	// admin observes the workspace but never writes into it
	if err := canPostThread(admin, sr, models.ThreadWorkspace); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("admin posting to workspace: got %v, want ErrForbidden", err)
	}
}

func TestMarkReadScopedToRecipients(t *testing.T) {
	client, ca, otherCA, admin, sr := testParties()
	sr.IsWorkspaceUnlocked = true

	// both parties reading the workspace consume the unread counters
	if !isThreadRecipient(client, sr, models.ThreadWorkspace) {
		t.Fatal("client reading the workspace should mark messages read")
	}
	if !isThreadRecipient(ca, sr, models.ThreadWorkspace) {
		t.Fatal("assigned ca reading the workspace should mark messages read")
	}

	// an admin observing the workspace must leave them untouched
	if isThreadRecipient(admin, sr, models.ThreadWorkspace) {
		t.Fatal("admin observing the workspace must not mark messages read")
	}
	if isThreadRecipient(otherCA, sr, models.ThreadWorkspace) {
		t.Fatal("unassigned ca must not mark workspace messages read")
	}

	// on the bridge threads the admin is a participant, not an observer
	if !isThreadRecipient(admin, sr, models.ThreadClient) {
		t.Fatal("admin reading the client bridge should mark messages read")
	}
	if !isThreadRecipient(admin, sr, models.ThreadCA) {
		t.Fatal("admin reading the ca bridge should mark messages read")
	}
}

func TestDisplayNameMasksAdmin(t *testing.T) {
	admin := &models.User{ID: uuid.New(), Name: "Priya Admin", Role: models.RoleAdmin}

	msg := &models.Message{SenderRole: models.RoleAdmin, Thread: models.ThreadClient, Sender: admin}
	if got := displayName(msg); got != PersonaClientThread {
		t.Fatalf("client thread persona = %q, want %q", got, PersonaClientThread)
	}

	msg.Thread = models.ThreadCA
	if got := displayName(msg); got != PersonaCAThread {
		t.Fatalf("ca thread persona = %q, want %q", got, PersonaCAThread)
	}

	sender := &models.User{ID: uuid.New(), Name: "Asha", Role: models.RoleClient}
	msg = &models.Message{SenderRole: models.RoleClient, Thread: models.ThreadClient, Sender: sender}
	if got := displayName(msg); got != "Asha" {
		t.Fatalf("party display name = %q, want Asha", got)
	}
}

func TestResolveThread(t *testing.T) {
	client, ca, _, admin, sr := testParties()

	cases := []struct {
		name string
		user *models.User
		in   SendMessageReq
		want models.Thread
	}{
		{"client lands in client bridge", client, SendMessageReq{}, models.ThreadClient},
		{"ca lands in ca bridge", ca, SendMessageReq{}, models.ThreadCA},
		{"admin defaults to client bridge", admin, SendMessageReq{}, models.ThreadClient},
		{"admin routes to ca", admin, SendMessageReq{IntendedFor: "ca"}, models.ThreadCA},
		{"explicit workspace wins", client, SendMessageReq{Thread: "workspace"}, models.ThreadWorkspace},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resolveThread(tc.user, sr, tc.in); got != tc.want {
				t.Fatalf("resolveThread = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestProvenanceVisibleOnlyToAdmin(t *testing.T) {
	client, ca, _, admin, sr := testParties()

	origID := uuid.New()
	srcID := uuid.New()
	fwd := &models.Message{
		ID:                 uuid.New(),
		RequestID:          sr.ID,
		SenderID:           admin.ID,
		SenderRole:         models.RoleAdmin,
		Thread:             models.ThreadCA,
		Text:               "please confirm the filing deadline",
		ForwardedFromID:    &srcID,
		OriginalSenderID:   &origID,
		OriginalSenderRole: models.RoleClient,
	}

	got := toMessageResponse(fwd, admin)
	if got.OriginalSenderID == "" || got.OriginalSenderRole != string(models.RoleClient) {
		t.Fatal("admin view should carry provenance")
	}
	if !got.IsForwarded {
		t.Fatal("forwarded flag missing")
	}
	if got.DisplayName != PersonaCAThread {
		t.Fatalf("forwarded message shows %q, want thread persona", got.DisplayName)
	}

	for _, viewer := range []*models.User{client, ca, nil} {
		got := toMessageResponse(fwd, viewer)
		if got.OriginalSenderID != "" || got.OriginalSenderRole != "" {
			t.Fatalf("provenance leaked to non-admin viewer %+v", viewer)
		}
	}
}
