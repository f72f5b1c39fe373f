package handlers

import (
	"log"
	"math"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taxbridge/internal/models"
)

type CADashboardHandler struct {
	DB *gorm.DB
}

func NewCADashboardHandler(db *gorm.DB) *CADashboardHandler {
	return &CADashboardHandler{DB: db}
}

func (h *CADashboardHandler) Routes(r fiber.Router) {
	g := r.Group("/ca")
	g.Get("/dashboard/stats", h.Stats)
	g.Get("/assignments", h.Assignments)
	g.Get("/earnings", h.Earnings)
}

// Stats is the dashboard summary card: active work, unread messages, total
// recorded payouts.
func (h *CADashboardHandler) Stats(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	var activeWork int64
	if err := h.DB.Model(&models.ServiceRequest{}).
		Where("ca_id = ?", actor.ID).
		Where("status IN ?", []models.RequestStatus{
			models.StatusAwaitingPayment,
			models.StatusActive,
			models.StatusCompleted,
		}).
		Count(&activeWork).Error; err != nil {
		log.Println("ca stats: count active work:", err)
	}

	var pendingBids int64
	h.DB.Model(&models.Bid{}).
		Where("ca_id = ? AND status = ?", actor.ID, models.BidPending).
		Count(&pendingBids)

	// unread messages addressed to me: my bridge thread plus unlocked
	// workspace messages on my assignments
	var unread int64
	h.DB.Table("messages").
		Joins("JOIN service_requests ON service_requests.id = messages.request_id").
		Where("service_requests.ca_id = ?", actor.ID).
		Where("messages.thread IN ?", []models.Thread{models.ThreadCA, models.ThreadWorkspace}).
		Where("messages.sender_id != ?", actor.ID).
		Where("messages.is_read = false").
		Count(&unread)

	var totalPayouts int64
	h.DB.Model(&models.PayoutEntry{}).
		Where("ca_id = ?", actor.ID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&totalPayouts)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"active_work":     activeWork,
			"pending_bids":    pendingBids,
			"unread_messages": unread,
			"total_payouts":   totalPayouts,
		},
	})
}

// Assignments lists the requests assigned to this CA, newest first.
func (h *CADashboardHandler) Assignments(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	q := h.DB.Model(&models.ServiceRequest{}).
		Preload("Client").
		Where("ca_id = ?", actor.ID)
	if status := c.Query("status"); status != "" {
		if !models.ValidRequestStatus(models.RequestStatus(status)) {
			return fail(c, fiber.StatusBadRequest, "invalid status")
		}
		q = q.Where("status = ?", status)
	}

	var total int64
	q.Count(&total)

	var reqs []models.ServiceRequest
	if err := q.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&reqs).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to fetch assignments")
	}

	out := make([]RequestResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, toRequestResponse(&reqs[i], actor))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    out,
		"meta": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total_items": total,
			"total_pages": int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// Earnings returns the payout ledger for this CA.
func (h *CADashboardHandler) Earnings(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	var total int64
	h.DB.Model(&models.PayoutEntry{}).
		Where("ca_id = ?", actor.ID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total)

	var history []models.PayoutEntry
	if err := h.DB.Where("ca_id = ?", actor.ID).
		Order("created_at DESC").
		Limit(50).
		Find(&history).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to fetch payout history")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_payouts": total,
			"history":       history,
		},
	})
}
