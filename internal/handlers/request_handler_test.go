package handlers

import (
	"testing"

	"github.com/google/uuid"

	"taxbridge/internal/models"
)

func TestRequestResponseElision(t *testing.T) {
	client, ca, otherCA, admin, sr := testParties()
	sr.Client = client
	sr.CA = ca
	sr.Status = models.StatusLive
	sr.CAID = nil
	sr.CA = nil

	// live request: a browsing CA never sees the client card
	got := toRequestResponse(sr, otherCA)
	if got.Client != nil {
		t.Fatal("browsing ca must not see client identity")
	}
	if got.Title == "" {
		t.Fatal("job content should still be visible")
	}

	// the owner sees their own card
	got = toRequestResponse(sr, client)
	if got.Client == nil || got.Client.Name != client.Name {
		t.Fatal("owner should see their own identity")
	}

	// after hire the client sees the CA card
	caID := ca.ID
	sr.CAID = &caID
	sr.CA = ca
	sr.Status = models.StatusAwaitingPayment
	got = toRequestResponse(sr, client)
	if got.CA == nil || got.CA.Name != ca.Name {
		t.Fatal("client should see assigned ca after hire")
	}

	// assigned CA sees the client only once the workspace opens
	got = toRequestResponse(sr, ca)
	if got.Client != nil {
		t.Fatal("assigned ca must not see client before unlock")
	}
	sr.IsWorkspaceUnlocked = true
	got = toRequestResponse(sr, ca)
	if got.Client == nil {
		t.Fatal("assigned ca should see client after unlock")
	}

	// admin always sees both
	got = toRequestResponse(sr, admin)
	if got.Client == nil || got.CA == nil {
		t.Fatal("admin should see both parties")
	}
}

func TestCanViewRequest(t *testing.T) {
	client, ca, otherCA, admin, sr := testParties()
	stranger := &models.User{ID: uuid.New(), Role: models.RoleClient}

	if !canViewRequest(admin, sr) {
		t.Fatal("admin can view any request")
	}
	if !canViewRequest(client, sr) {
		t.Fatal("owner can view own request")
	}
	if canViewRequest(stranger, sr) {
		t.Fatal("other clients must not view")
	}
	if !canViewRequest(ca, sr) {
		t.Fatal("assigned ca can view")
	}
	if canViewRequest(otherCA, sr) {
		t.Fatal("unassigned ca must not view a non-live request")
	}

	sr.Status = models.StatusLive
	sr.CAID = nil
	if !canViewRequest(otherCA, sr) {
		t.Fatal("verified ca can browse live requests")
	}
	otherCA.IsVerified = false
	if canViewRequest(otherCA, sr) {
		t.Fatal("unverified ca must not browse live requests")
	}
	otherCA.IsVerified = true
}
