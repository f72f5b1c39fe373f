package handlers

import (
	"fmt"

	"gorm.io/gorm"

	"taxbridge/internal/models"
	"taxbridge/internal/workflow"
)

// runTransition drives one state-machine edge. The status check is repeated
// inside the UPDATE's WHERE clause, so a racing writer loses cleanly: zero
// rows affected means the request moved underneath us and the caller gets a
// conflict carrying the actual current status. extra runs in the same
// transaction (sibling-bid rejection, payout rows, ...).
func runTransition(db *gorm.DB, req *models.ServiceRequest, actor workflow.Actor, next models.RequestStatus, extra func(tx *gorm.DB) error) error {
	if err := workflow.Authorize(req, actor, next); err != nil {
		return err
	}

	from := req.Status
	updated := *req
	workflow.Apply(&updated, next)

	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND status = ?", req.ID, from).
			Updates(map[string]interface{}{
				"status":                updated.Status,
				"is_workspace_unlocked": updated.IsWorkspaceUnlocked,
				"is_archived":           updated.IsArchived,
				"ca_id":                 updated.CAID,
				"final_price":           updated.FinalPrice,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var cur models.ServiceRequest
			if err := tx.First(&cur, "id = ?", req.ID).Error; err == nil {
				req.Status = cur.Status
			}
			return fmt.Errorf("%w: request is %s, not %s", models.ErrStatusConflict, req.Status, from)
		}
		if extra != nil {
			return extra(tx)
		}
		return nil
	})
	if err != nil {
		return err
	}

	*req = updated
	return nil
}
