package models

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	StatusPendingApproval RequestStatus = "pending_approval" // Waiting admin moderation
	StatusLive            RequestStatus = "live"             // Visible to CAs, bidding open
	StatusAwaitingPayment RequestStatus = "awaiting_payment" // CA hired, workspace still locked
	StatusActive          RequestStatus = "active"           // Workspace unlocked, work in progress
	StatusCompleted       RequestStatus = "completed"        // CA marked done, waiting client review
	StatusReadyForPayout  RequestStatus = "ready_for_payout" // Client approved the work
	StatusPayoutCompleted RequestStatus = "payout_completed" // Archived, CA paid out
	StatusCancelled       RequestStatus = "cancelled"
)

func ValidRequestStatus(s RequestStatus) bool {
	switch s {
	case StatusPendingApproval, StatusLive, StatusAwaitingPayment, StatusActive,
		StatusCompleted, StatusReadyForPayout, StatusPayoutCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// ServiceRequest is the central entity; its Status field is the single source
// of truth for what may happen next. Bidding, messaging and workspace access
// all gate on it rather than keeping their own notion of progress.
type ServiceRequest struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID uuid.UUID  `gorm:"type:uuid;index;not null" json:"client_id"`
	CAID     *uuid.UUID `gorm:"type:uuid;index" json:"ca_id,omitempty"` // set on hire, never before

	ServiceType string `gorm:"type:varchar(80);not null" json:"service_type"`
	Title       string `gorm:"type:varchar(160);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	Budget     int64  `json:"budget"`      // client-proposed
	FinalPrice *int64 `json:"final_price"` // accepted bid price, set on hire

	Status              RequestStatus `gorm:"type:varchar(30);not null;default:'pending_approval';index" json:"status"`
	IsWorkspaceUnlocked bool          `gorm:"default:false" json:"is_workspace_unlocked"`
	IsArchived          bool          `gorm:"default:false" json:"is_archived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Client *User `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	CA     *User `gorm:"foreignKey:CAID" json:"ca,omitempty"`
	Bids   []Bid `gorm:"foreignKey:RequestID" json:"bids,omitempty"`
}
