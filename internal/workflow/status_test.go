package workflow

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"taxbridge/internal/models"
)

var allStatuses = []models.RequestStatus{
	models.StatusPendingApproval,
	models.StatusLive,
	models.StatusAwaitingPayment,
	models.StatusActive,
	models.StatusCompleted,
	models.StatusReadyForPayout,
	models.StatusPayoutCompleted,
	models.StatusCancelled,
}

func TestCanTransition_Matrix(t *testing.T) {
	allowed := map[[2]models.RequestStatus]bool{
		{models.StatusPendingApproval, models.StatusLive}:           true,
		{models.StatusLive, models.StatusAwaitingPayment}:           true,
		{models.StatusAwaitingPayment, models.StatusActive}:         true,
		{models.StatusActive, models.StatusCompleted}:               true,
		{models.StatusCompleted, models.StatusReadyForPayout}:       true,
		{models.StatusCompleted, models.StatusActive}:               true,
		{models.StatusReadyForPayout, models.StatusPayoutCompleted}: true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]models.RequestStatus{from, to}]
			// Any non-terminal state can be force-cancelled.
			if to == models.StatusCancelled && from != models.StatusCancelled && from != models.StatusPayoutCompleted {
				want = true
			}
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range allStatuses {
		want := s == models.StatusPayoutCompleted || s == models.StatusCancelled
		if got := Terminal(s); got != want {
			t.Errorf("Terminal(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestAuthorize_RoleAndOwnership(t *testing.T) {
	clientID := uuid.New()
	caID := uuid.New()
	adminID := uuid.New()
	otherID := uuid.New()

	req := func(status models.RequestStatus, assigned bool) *models.ServiceRequest {
		r := &models.ServiceRequest{ID: uuid.New(), ClientID: clientID, Status: status}
		if assigned {
			id := caID
			r.CAID = &id
		}
		return r
	}

	tests := []struct {
		name    string
		req     *models.ServiceRequest
		actor   Actor
		next    models.RequestStatus
		wantErr error
	}{
		{"admin approves pending", req(models.StatusPendingApproval, false), Actor{adminID, models.RoleAdmin}, models.StatusLive, nil},
		{"client cannot approve", req(models.StatusPendingApproval, false), Actor{clientID, models.RoleClient}, models.StatusLive, models.ErrForbidden},
		{"approve from wrong state", req(models.StatusLive, false), Actor{adminID, models.RoleAdmin}, models.StatusLive, models.ErrStatusConflict},
		{"owner hires from live", req(models.StatusLive, false), Actor{clientID, models.RoleClient}, models.StatusAwaitingPayment, nil},
		{"non-owner cannot hire", req(models.StatusLive, false), Actor{otherID, models.RoleClient}, models.StatusAwaitingPayment, models.ErrForbidden},
		{"hire from pending conflicts", req(models.StatusPendingApproval, false), Actor{clientID, models.RoleClient}, models.StatusAwaitingPayment, models.ErrStatusConflict},
		{"admin unlocks", req(models.StatusAwaitingPayment, true), Actor{adminID, models.RoleAdmin}, models.StatusActive, nil},
		{"ca cannot unlock", req(models.StatusAwaitingPayment, true), Actor{caID, models.RoleCA}, models.StatusActive, models.ErrForbidden},
		{"assigned ca marks done", req(models.StatusActive, true), Actor{caID, models.RoleCA}, models.StatusCompleted, nil},
		{"other ca cannot mark done", req(models.StatusActive, true), Actor{otherID, models.RoleCA}, models.StatusCompleted, models.ErrForbidden},
		{"unassigned request cannot complete", req(models.StatusActive, false), Actor{caID, models.RoleCA}, models.StatusCompleted, models.ErrForbidden},
		{"owner approves work", req(models.StatusCompleted, true), Actor{clientID, models.RoleClient}, models.StatusReadyForPayout, nil},
		{"owner rejects work back to active", req(models.StatusCompleted, true), Actor{clientID, models.RoleClient}, models.StatusActive, nil},
		{"ca cannot approve own work", req(models.StatusCompleted, true), Actor{caID, models.RoleCA}, models.StatusReadyForPayout, models.ErrForbidden},
		{"admin archives", req(models.StatusReadyForPayout, true), Actor{adminID, models.RoleAdmin}, models.StatusPayoutCompleted, nil},
		{"admin force-cancels active", req(models.StatusActive, true), Actor{adminID, models.RoleAdmin}, models.StatusCancelled, nil},
		{"client cannot force-cancel active", req(models.StatusActive, true), Actor{clientID, models.RoleClient}, models.StatusCancelled, models.ErrForbidden},
		{"cannot cancel archived", req(models.StatusPayoutCompleted, true), Actor{adminID, models.RoleAdmin}, models.StatusCancelled, models.ErrStatusConflict},
	}

	for _, tt := range tests {
		before := tt.req.Status
		err := Authorize(tt.req, tt.actor, tt.next)
		if tt.wantErr == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.wantErr)
		}
		if tt.req.Status != before {
			t.Errorf("%s: Authorize mutated status %s -> %s", tt.name, before, tt.req.Status)
		}
	}
}

func TestApply_DerivedFlags(t *testing.T) {
	req := &models.ServiceRequest{Status: models.StatusAwaitingPayment}

	Apply(req, models.StatusActive)
	if req.Status != models.StatusActive || !req.IsWorkspaceUnlocked {
		t.Fatalf("unlock: got status=%s unlocked=%v", req.Status, req.IsWorkspaceUnlocked)
	}

	Apply(req, models.StatusCompleted)
	Apply(req, models.StatusActive) // client rejected the work
	if req.Status != models.StatusActive || !req.IsWorkspaceUnlocked {
		t.Fatalf("rework: got status=%s unlocked=%v", req.Status, req.IsWorkspaceUnlocked)
	}

	Apply(req, models.StatusCompleted)
	Apply(req, models.StatusReadyForPayout)
	Apply(req, models.StatusPayoutCompleted)
	if !req.IsArchived {
		t.Fatal("archive should set IsArchived")
	}
}

func TestApply_CancelRelocksWorkspace(t *testing.T) {
	req := &models.ServiceRequest{Status: models.StatusActive, IsWorkspaceUnlocked: true}
	Apply(req, models.StatusCancelled)
	if req.IsWorkspaceUnlocked {
		t.Fatal("cancelled request must not keep an unlocked workspace")
	}
}

func TestApply_CancelClearsAssignment(t *testing.T) {
	caID := uuid.New()
	price := int64(4500)
	req := &models.ServiceRequest{
		Status:              models.StatusActive,
		CAID:                &caID,
		FinalPrice:          &price,
		IsWorkspaceUnlocked: true,
	}

	Apply(req, models.StatusCancelled)

	if req.CAID != nil {
		t.Error("cancelled request must not keep a CA assignment")
	}
	if req.FinalPrice != nil {
		t.Error("cancelled request must not keep an agreed price")
	}
}
