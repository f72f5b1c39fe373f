package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"taxbridge/internal/models"
	"taxbridge/internal/realtime"
	"taxbridge/internal/services/ledger"
	"taxbridge/internal/services/mailer"
	"taxbridge/internal/workflow"
)

// AdminHandler is the moderation surface: the consumer that makes the state
// machine's invariants externally observable.
type AdminHandler struct {
	DB     *gorm.DB
	Hub    *realtime.Hub
	RDB    *redis.Client
	Mail   *mailer.Mailer
	Ledger *ledger.Service
}

func NewAdminHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client, mail *mailer.Mailer) *AdminHandler {
	return &AdminHandler{DB: db, Hub: hub, RDB: rdb, Mail: mail, Ledger: ledger.NewService(db)}
}

// ListPending is the moderation queue plus the payment queue.
func (h *AdminHandler) ListPending(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	status := models.RequestStatus(c.Query("status", string(models.StatusPendingApproval)))
	if !models.ValidRequestStatus(status) {
		return fail(c, fiber.StatusBadRequest, "invalid status")
	}

	var reqs []models.ServiceRequest
	if err := h.DB.Preload("Client").Preload("CA").
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&reqs).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to fetch requests")
	}

	out := make([]RequestResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, toRequestResponse(&reqs[i], actor))
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

// Approve moves a moderated request live; every verified CA's socket gets the
// new job announcement.
func (h *AdminHandler) Approve(c *fiber.Ctx) error {
	return h.transition(c, models.StatusLive, "request_approved", func(sr *models.ServiceRequest) {
		h.Hub.EmitToRole(models.RoleCA, realtime.EventNewPendingJob, fiber.Map{
			"request_id":   sr.ID.String(),
			"service_type": sr.ServiceType,
			"title":        sr.Title,
			"budget":       sr.Budget,
		})
		if h.Mail != nil && sr.Client != nil {
			h.Mail.SendAsync(sr.Client.Email, "Your request is live",
				fmt.Sprintf("%q passed moderation and is now visible to professionals.", sr.Title))
		}
	})
}

// Reject cancels a request still in moderation.
func (h *AdminHandler) Reject(c *fiber.Ctx) error {
	return h.transition(c, models.StatusCancelled, "request_rejected", nil)
}

// Unlock opens the workspace after payment is confirmed out of band.
func (h *AdminHandler) Unlock(c *fiber.Ctx) error {
	return h.transition(c, models.StatusActive, "workspace_unlocked", func(sr *models.ServiceRequest) {
		h.Hub.EmitToRoom(realtime.RequestRoom(sr.ID), realtime.EventWorkspaceUnlocked, toAdminSnapshot(sr))
		if sr.CAID != nil {
			h.Hub.SendToUser(*sr.CAID, realtime.EventWorkspaceUnlocked, toAdminSnapshot(sr))
		}
		h.Hub.SendToUser(sr.ClientID, realtime.EventWorkspaceUnlocked, toAdminSnapshot(sr))
		if h.Mail != nil {
			if sr.Client != nil {
				h.Mail.SendAsync(sr.Client.Email, "Workspace unlocked",
					fmt.Sprintf("The workspace for %q is open; you can now talk to your CA directly.", sr.Title))
			}
			if sr.CA != nil {
				h.Mail.SendAsync(sr.CA.Email, "Workspace unlocked",
					fmt.Sprintf("The workspace for %q is open; you can start the work.", sr.Title))
			}
		}
	})
}

// Archive closes out an approved request and records the payout row in the
// same transaction as the final transition.
func (h *AdminHandler) Archive(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request ID")
	}

	var sr models.ServiceRequest
	if err := h.DB.Preload("Client").Preload("CA").First(&sr, "id = ?", id).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	err = runTransition(h.DB, &sr, workflow.Actor{ID: actor.ID, Role: actor.Role}, models.StatusPayoutCompleted, func(tx *gorm.DB) error {
		return h.Ledger.RecordPayout(tx, &sr)
	})
	if err != nil {
		return respondDomainErr(c, err, sr.Status)
	}

	recordActivity(h.DB, &sr.ID, &actor.ID, "request_archived",
		fmt.Sprintf("admin archived %q and recorded the payout", sr.Title),
		map[string]interface{}{"amount": sr.FinalPrice})

	h.Hub.EmitToRoom(realtime.RequestRoom(sr.ID), realtime.EventJobStatusUpdated, fiber.Map{
		"request_id": sr.ID.String(),
		"status":     sr.Status,
	})
	if h.Mail != nil && sr.CA != nil && sr.FinalPrice != nil {
		h.Mail.SendAsync(sr.CA.Email, "Payout recorded",
			fmt.Sprintf("Your payout of %d for %q has been recorded.", *sr.FinalPrice, sr.Title))
	}

	return c.JSON(fiber.Map{"success": true, "data": toRequestResponse(&sr, actor)})
}

// ForceCancel kills any non-terminal request.
func (h *AdminHandler) ForceCancel(c *fiber.Ctx) error {
	return h.transition(c, models.StatusCancelled, "request_cancelled", nil)
}

func (h *AdminHandler) transition(c *fiber.Ctx, next models.RequestStatus, action string, after func(*models.ServiceRequest)) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request ID")
	}

	var sr models.ServiceRequest
	if err := h.DB.Preload("Client").Preload("CA").First(&sr, "id = ?", id).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	if err := runTransition(h.DB, &sr, workflow.Actor{ID: actor.ID, Role: actor.Role}, next, nil); err != nil {
		return respondDomainErr(c, err, sr.Status)
	}

	recordActivity(h.DB, &sr.ID, &actor.ID, action,
		fmt.Sprintf("admin moved %q to %s", sr.Title, sr.Status), nil)

	h.Hub.EmitToRoom(realtime.RequestRoom(sr.ID), realtime.EventJobStatusUpdated, fiber.Map{
		"request_id": sr.ID.String(),
		"status":     sr.Status,
	})
	h.Hub.SendToUser(sr.ClientID, realtime.EventJobStatusUpdated, fiber.Map{
		"request_id": sr.ID.String(),
		"status":     sr.Status,
	})

	if after != nil {
		after(&sr)
	}
	return c.JSON(fiber.Map{"success": true, "data": toRequestResponse(&sr, actor)})
}

func toAdminSnapshot(sr *models.ServiceRequest) fiber.Map {
	return fiber.Map{
		"request_id":            sr.ID.String(),
		"status":                sr.Status,
		"is_workspace_unlocked": sr.IsWorkspaceUnlocked,
	}
}

// VerifyCA is the one-way switch that lets a CA start bidding. It approves
// the pending profile in the same stroke.
func (h *AdminHandler) VerifyCA(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	caID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid user ID")
	}

	var ca models.User
	if err := h.DB.First(&ca, "id = ? AND role = ?", caID, models.RoleCA).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", ca.ID).
			Update("is_verified", true).Error; err != nil {
			return err
		}
		return tx.Model(&models.CAProfile{}).Where("user_id = ?", ca.ID).
			Update("onboarding_status", models.OnboardingApproved).Error
	})
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to verify ca")
	}

	recordActivity(h.DB, nil, &actor.ID, "ca_verified",
		fmt.Sprintf("admin verified %s", ca.Name), nil)

	h.Hub.SendToUser(ca.ID, realtime.EventAccountVerified, fiber.Map{"user_id": ca.ID.String()})
	if h.Mail != nil {
		h.Mail.SendAsync(ca.Email, "Account verified",
			"Your professional account is verified. You can now bid on live requests.")
	}

	return c.JSON(fiber.Map{"success": true})
}

// ListUsers backs the admin user table; filterable by role and verification.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	q := h.DB.Preload("CAProfile").Order("created_at DESC")
	if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	if c.Query("unverified") == "true" {
		q = q.Where("role = ? AND is_verified = false", models.RoleCA)
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to fetch users")
	}
	return c.JSON(fiber.Map{"success": true, "data": users})
}

// ActivityFeed returns the newest audit entries.
func (h *AdminHandler) ActivityFeed(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []models.ActivityLog
	if err := h.DB.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to fetch activity")
	}
	return c.JSON(fiber.Map{"success": true, "data": entries})
}
