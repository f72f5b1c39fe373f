package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient Role = "client"
	RoleCA     Role = "ca"
	RoleAdmin  Role = "admin"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleClient, RoleCA, RoleAdmin:
		return true
	default:
		return false
	}
}

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`
	Phone string    `gorm:"type:varchar(30)" json:"phone"`

	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"type:varchar(20);not null;index" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	// CA accounts only; flipped once by an admin, gates bidding.
	IsVerified bool `gorm:"default:false" json:"is_verified"`

	// Maintained by the socket layer on connect/disconnect.
	IsOnline bool `gorm:"default:false" json:"is_online"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CAProfile *CAProfile `gorm:"foreignKey:UserID;references:ID" json:"ca_profile,omitempty"`
}
