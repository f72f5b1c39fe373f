package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"taxbridge/internal/models"
	"taxbridge/internal/realtime"
	"taxbridge/internal/services/mailer"
	"taxbridge/internal/workflow"
)

type BidHandler struct {
	DB   *gorm.DB
	Hub  *realtime.Hub
	RDB  *redis.Client
	Mail *mailer.Mailer
}

func NewBidHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client, mail *mailer.Mailer) *BidHandler {
	return &BidHandler{DB: db, Hub: hub, RDB: rdb, Mail: mail}
}

// CACard is what a client sees of a bidding CA before hire: professional
// details only, no contact channel.
type CACard struct {
	Name            string `json:"name"`
	ExperienceYears int    `json:"experience_years"`
	Specialization  string `json:"specialization,omitempty"`
	Certification   string `json:"certification,omitempty"`
}

type BidResponse struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Price     int64     `json:"price"`
	Proposal  string    `json:"proposal"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	CA *CACard `json:"ca,omitempty"`
}

func toBidResponse(bid *models.Bid) BidResponse {
	resp := BidResponse{
		ID:        bid.ID.String(),
		RequestID: bid.RequestID.String(),
		Price:     bid.Price,
		Proposal:  bid.Proposal,
		Status:    string(bid.Status),
		CreatedAt: bid.CreatedAt,
	}
	if bid.CA != nil {
		card := &CACard{Name: bid.CA.Name}
		if p := bid.CA.CAProfile; p != nil {
			card.ExperienceYears = p.ExperienceYears
			card.Specialization = p.Specialization
			card.Certification = p.Certification
		}
		resp.CA = card
	}
	return resp
}

type SubmitBidReq struct {
	Price    int64  `json:"price"`
	Proposal string `json:"proposal"`
}

// Submit creates a CA's proposal on a live request. One bid per CA per
// request; the unique index backs up the pre-check under races.
func (h *BidHandler) Submit(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}
	if !actor.IsVerified {
		return respondDomainErr(c, models.ErrUnverifiedCA, "")
	}

	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request ID")
	}

	var req SubmitBidReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	errs := FieldErrors{}
	if req.Price <= 0 {
		errs.Add("price", "Price must be positive")
	}
	if strings.TrimSpace(req.Proposal) == "" {
		errs.Add("proposal", "Proposal is required")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var sr models.ServiceRequest
	if err := h.DB.First(&sr, "id = ?", requestID).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}
	if sr.Status != models.StatusLive {
		return respondDomainErr(c, models.ErrBiddingClosed, sr.Status)
	}

	var existing models.Bid
	if err := h.DB.Where("request_id = ? AND ca_id = ?", requestID, actor.ID).First(&existing).Error; err == nil {
		return respondDomainErr(c, models.ErrDuplicateBid, sr.Status)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, fiber.StatusInternalServerError, "failed to check existing bid")
	}

	bid := models.Bid{
		RequestID: requestID,
		CAID:      actor.ID,
		Price:     req.Price,
		Proposal:  req.Proposal,
		Status:    models.BidPending,
	}
	if err := h.DB.Create(&bid).Error; err != nil {
		if isUniqueViolation(err) {
			return respondDomainErr(c, models.ErrDuplicateBid, sr.Status)
		}
		return fail(c, fiber.StatusInternalServerError, "failed to submit bid")
	}

	recordActivity(h.DB, &sr.ID, &actor.ID, "bid_submitted",
		fmt.Sprintf("a ca bid %d on %q", bid.Price, sr.Title),
		map[string]interface{}{"price": bid.Price})

	// The client gets a wake-up with the request id only; the bid card is
	// fetched over HTTP with contact fields elided.
	h.Hub.SendToUser(sr.ClientID, realtime.EventNewBidReceived, fiber.Map{"request_id": sr.ID.String()})
	h.Hub.EmitToRole(models.RoleAdmin, realtime.EventNewBidReceived, fiber.Map{"request_id": sr.ID.String()})
	h.notify(sr.ClientID, fiber.Map{"type": "new_bid", "request_id": sr.ID.String()})

	if h.Mail != nil {
		var client models.User
		if err := h.DB.First(&client, "id = ?", sr.ClientID).Error; err == nil {
			h.Mail.SendAsync(client.Email, "New bid on your request",
				fmt.Sprintf("A CA placed a bid on %q. Log in to review it.", sr.Title))
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": toBidResponse(&bid)})
}

// List returns a request's bids newest-first. Clients see elided CA cards;
// CAs see only their own bid.
func (h *BidHandler) List(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request ID")
	}

	var sr models.ServiceRequest
	if err := h.DB.First(&sr, "id = ?", requestID).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	q := h.DB.Preload("CA").Preload("CA.CAProfile").
		Where("request_id = ?", requestID).
		Order("created_at DESC")

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleClient:
		if sr.ClientID != actor.ID {
			return fail(c, fiber.StatusForbidden, "access denied")
		}
	case models.RoleCA:
		q = q.Where("ca_id = ?", actor.ID)
	default:
		return fail(c, fiber.StatusForbidden, "access denied")
	}

	var bids []models.Bid
	if err := q.Find(&bids).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to fetch bids")
	}

	out := make([]BidResponse, 0, len(bids))
	for i := range bids {
		out = append(out, toBidResponse(&bids[i]))
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

// Hire accepts one bid. The request move to awaiting_payment, the chosen bid
// to accepted and every sibling to rejected commit in a single transaction;
// no reader ever sees the request hired with a sibling still pending.
func (h *BidHandler) Hire(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	bidID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid bid ID")
	}

	var bid models.Bid
	if err := h.DB.Preload("CA").First(&bid, "id = ?", bidID).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	var sr models.ServiceRequest
	if err := h.DB.First(&sr, "id = ?", bid.RequestID).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	caID := bid.CAID
	price := bid.Price
	sr.CAID = &caID
	sr.FinalPrice = &price

	err = runTransition(h.DB, &sr, workflow.Actor{ID: actor.ID, Role: actor.Role}, models.StatusAwaitingPayment, func(tx *gorm.DB) error {
		res := tx.Model(&models.Bid{}).
			Where("id = ? AND status = ?", bid.ID, models.BidPending).
			Update("status", models.BidAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: bid is no longer pending", models.ErrStatusConflict)
		}
		return tx.Model(&models.Bid{}).
			Where("request_id = ? AND id <> ?", sr.ID, bid.ID).
			Update("status", models.BidRejected).Error
	})
	if err != nil {
		return respondDomainErr(c, err, sr.Status)
	}
	bid.Status = models.BidAccepted

	recordActivity(h.DB, &sr.ID, &actor.ID, "ca_hired",
		fmt.Sprintf("%s hired a ca for %q at %d", actor.Name, sr.Title, price),
		map[string]interface{}{"bid_id": bid.ID.String(), "price": price})

	h.Hub.EmitToRoom(realtime.RequestRoom(sr.ID), realtime.EventJobStatusUpdated, fiber.Map{
		"request_id": sr.ID.String(),
		"status":     sr.Status,
	})
	h.Hub.EmitToRole(models.RoleAdmin, realtime.EventNewPendingPayment, toRequestResponse(&sr, actor))
	h.Hub.SendToUser(caID, realtime.EventJobStatusUpdated, fiber.Map{
		"request_id": sr.ID.String(),
		"status":     sr.Status,
	})
	h.notify(caID, fiber.Map{"type": "hired", "request_id": sr.ID.String()})

	if h.Mail != nil && bid.CA != nil {
		h.Mail.SendAsync(bid.CA.Email, "Your bid was accepted",
			fmt.Sprintf("Your bid on %q was accepted. The workspace opens once payment clears.", sr.Title))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"request": toRequestResponse(&sr, actor),
			"bid":     toBidResponse(&bid),
		},
	})
}

func (h *BidHandler) notify(userID uuid.UUID, payload fiber.Map) {
	if h.RDB == nil {
		return
	}
	if err := realtime.PublishUserNotification(context.Background(), h.RDB, userID, payload); err != nil {
		// Best-effort; the committed state is authoritative regardless.
		log.Println("notify:", err)
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "23505"))
}
