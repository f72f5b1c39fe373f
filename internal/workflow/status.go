// Package workflow owns the service-request state machine: which status edges
// exist and which actor may drive each one. Handlers must call Authorize before
// any mutation so an illegal transition is rejected with state untouched.
package workflow

import (
	"fmt"

	"github.com/google/uuid"

	"taxbridge/internal/models"
)

// Actor is whoever is attempting a transition, as resolved from the session.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

// ownership narrows a role rule to a specific user on the request.
type ownership int

const (
	anyOfRole      ownership = iota
	requestClient            // must be the request's original client
	requestCA                // must be the request's assigned CA
)

type rule struct {
	role  models.Role
	owner ownership
}

type edge struct {
	from models.RequestStatus
	to   models.RequestStatus
}

// transitions is the authoritative allow-list. An edge absent here does not
// exist; an actor not matching the rule may not drive it.
var transitions = map[edge]rule{
	{models.StatusPendingApproval, models.StatusLive}:       {models.RoleAdmin, anyOfRole},
	{models.StatusPendingApproval, models.StatusCancelled}:  {models.RoleAdmin, anyOfRole},
	{models.StatusLive, models.StatusAwaitingPayment}:       {models.RoleClient, requestClient},
	{models.StatusAwaitingPayment, models.StatusActive}:     {models.RoleAdmin, anyOfRole},
	{models.StatusActive, models.StatusCompleted}:           {models.RoleCA, requestCA},
	{models.StatusCompleted, models.StatusReadyForPayout}:   {models.RoleClient, requestClient},
	{models.StatusCompleted, models.StatusActive}:           {models.RoleClient, requestClient},
	{models.StatusReadyForPayout, models.StatusPayoutCompleted}: {models.RoleAdmin, anyOfRole},
}

// Terminal reports whether no further transitions exist from s.
func Terminal(s models.RequestStatus) bool {
	return s == models.StatusPayoutCompleted || s == models.StatusCancelled
}

// CanTransition reports whether the edge from -> to exists at all, for any
// actor. Admin force-cancel from any non-terminal state counts.
func CanTransition(from, to models.RequestStatus) bool {
	if to == models.StatusCancelled && !Terminal(from) {
		return true
	}
	_, ok := transitions[edge{from, to}]
	return ok
}

// Authorize checks that actor may move req to next. It returns
// models.ErrStatusConflict when the edge does not exist from the request's
// current status and models.ErrForbidden when the edge exists but the actor
// does not match its rule. The request is never mutated here.
func Authorize(req *models.ServiceRequest, actor Actor, next models.RequestStatus) error {
	if !CanTransition(req.Status, next) {
		return fmt.Errorf("%w: %s -> %s", models.ErrStatusConflict, req.Status, next)
	}

	// Force-cancel path: admin only, from any non-terminal state.
	r, ok := transitions[edge{req.Status, next}]
	if !ok {
		if actor.Role != models.RoleAdmin {
			return fmt.Errorf("%w: only admin may cancel %s", models.ErrForbidden, req.Status)
		}
		return nil
	}

	if actor.Role != r.role {
		return fmt.Errorf("%w: %s may not drive %s -> %s", models.ErrForbidden, actor.Role, req.Status, next)
	}

	switch r.owner {
	case requestClient:
		if req.ClientID != actor.ID {
			return fmt.Errorf("%w: not the requesting client", models.ErrForbidden)
		}
	case requestCA:
		if req.CAID == nil || *req.CAID != actor.ID {
			return fmt.Errorf("%w: not the assigned ca", models.ErrForbidden)
		}
	}
	return nil
}

// Apply mutates req in memory for the already-authorized transition, keeping
// the derived flags consistent with the status invariants.
func Apply(req *models.ServiceRequest, next models.RequestStatus) {
	req.Status = next
	switch next {
	case models.StatusActive:
		req.IsWorkspaceUnlocked = true
	case models.StatusPayoutCompleted:
		req.IsArchived = true
	case models.StatusCancelled:
		// A cancelled request has no assignment: the CA ref and agreed price
		// only exist for requests that progressed past hire.
		req.IsWorkspaceUnlocked = false
		req.CAID = nil
		req.FinalPrice = nil
	}
}
