package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a client rating for the CA who fulfilled a request; one per
// archived request.
type Review struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"request_id"`
	ClientID  uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	CAID      uuid.UUID `gorm:"type:uuid;index;not null" json:"ca_id"`

	Rating  int    `gorm:"not null" json:"rating"` // 1..5
	Comment string `gorm:"type:text" json:"comment"`

	CreatedAt time.Time `json:"created_at"`

	Client *User `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}
