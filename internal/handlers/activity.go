package handlers

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"taxbridge/internal/models"
)

// recordActivity appends to the admin feed. Best-effort: a failed write is
// logged and never fails the operation that triggered it.
func recordActivity(db *gorm.DB, requestID, actorID *uuid.UUID, action, detail string, meta map[string]interface{}) {
	entry := models.ActivityLog{
		RequestID: requestID,
		ActorID:   actorID,
		Action:    action,
		Detail:    detail,
	}
	if meta != nil {
		if b, err := json.Marshal(meta); err == nil {
			entry.Metadata = datatypes.JSON(b)
		}
	}
	if err := db.Create(&entry).Error; err != nil {
		log.Printf("activity: record %s failed: %v", action, err)
	}
}
