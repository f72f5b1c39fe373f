package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ActivityLog is the append-only feed behind the admin dashboard. Not load
// bearing for correctness, but every transition lands here so the whole
// workflow stays auditable.
type ActivityLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID *uuid.UUID `gorm:"type:uuid;index" json:"request_id,omitempty"`
	ActorID   *uuid.UUID `gorm:"type:uuid;index" json:"actor_id,omitempty"`

	Action   string         `gorm:"type:varchar(60);not null" json:"action"`
	Detail   string         `gorm:"type:text" json:"detail"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
