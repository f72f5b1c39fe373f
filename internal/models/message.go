package models

import (
	"time"

	"github.com/google/uuid"
)

type Thread string

const (
	ThreadClient    Thread = "client"    // client <-> admin
	ThreadCA        Thread = "ca"        // CA <-> admin
	ThreadWorkspace Thread = "workspace" // client <-> CA, after unlock; admin read-only
)

func ValidThread(t Thread) bool {
	switch t {
	case ThreadClient, ThreadCA, ThreadWorkspace:
		return true
	default:
		return false
	}
}

// Message is a chat entry attached to a request. Text is stored already
// redacted; rows are immutable after create.
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID uuid.UUID `gorm:"type:uuid;index;not null" json:"request_id"`
	SenderID  uuid.UUID `gorm:"type:uuid;index;not null" json:"sender_id"`

	SenderRole Role   `gorm:"type:varchar(20);not null" json:"sender_role"`
	Thread     Thread `gorm:"type:varchar(20);not null;index" json:"thread"`

	Text     string `gorm:"type:text" json:"text"`
	FileURL  string `gorm:"type:text" json:"file_url,omitempty"`
	FileName string `gorm:"type:varchar(255)" json:"file_name,omitempty"`

	// Set when an admin bridges a message across the pre-unlock threads.
	ForwardedFromID    *uuid.UUID `gorm:"type:uuid" json:"forwarded_from_id,omitempty"`
	OriginalSenderID   *uuid.UUID `gorm:"type:uuid" json:"original_sender_id,omitempty"`
	OriginalSenderRole Role       `gorm:"type:varchar(20)" json:"original_sender_role,omitempty"`

	IsRead    bool       `gorm:"default:false" json:"is_read"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
