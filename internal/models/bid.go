package models

import (
	"time"

	"github.com/google/uuid"
)

type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"
)

// Bid is a CA's proposal against one request. At most one bid per (request, CA)
// and at most one accepted bid per request; siblings flip to rejected in the
// same transaction that accepts one.
type Bid struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_bids_request_ca" json:"request_id"`
	CAID      uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_bids_request_ca" json:"ca_id"`

	Price    int64     `json:"price"`
	Proposal string    `gorm:"type:text" json:"proposal"`
	Status   BidStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Request *ServiceRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`
	CA      *User           `gorm:"foreignKey:CAID" json:"ca,omitempty"`
}
