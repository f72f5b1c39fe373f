package models

import (
	"time"

	"github.com/google/uuid"
)

// PayoutEntry is bookkeeping only: one row per archived request recording what
// the CA is owed. No gateway integration lives here.
type PayoutEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"request_id"`
	CAID      uuid.UUID `gorm:"type:uuid;index;not null" json:"ca_id"`

	Amount      int64  `json:"amount"`
	Description string `gorm:"type:text" json:"description"`

	CreatedAt time.Time `json:"created_at"`
}
