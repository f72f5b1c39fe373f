package models

import "errors"

var (
	ErrNotFound        = errors.New("requested entity does not exist")
	ErrForbidden       = errors.New("actor does not have permission for this operation")
	ErrStatusConflict  = errors.New("operation not allowed from the request's current status")
	ErrBiddingClosed   = errors.New("bidding window is closed for this request")
	ErrDuplicateBid    = errors.New("ca already has a bid on this request")
	ErrUnverifiedCA    = errors.New("ca account is not verified")
	ErrWorkspaceLocked = errors.New("workspace is not unlocked yet")
	ErrAlreadyReviewed = errors.New("request already has a review")
)
