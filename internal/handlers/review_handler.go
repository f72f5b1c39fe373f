package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"taxbridge/internal/models"
)

type ReviewHandler struct {
	DB *gorm.DB
}

func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{DB: db}
}

type createReviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Create lets the client rate the CA once their request is archived. One
// review per request.
func (h *ReviewHandler) Create(c *fiber.Ctx) error {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return err
	}

	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request ID")
	}

	var req createReviewReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Rating < 1 || req.Rating > 5 {
		fe := FieldErrors{}
		fe.Add("rating", "rating must be between 1 and 5")
		return validationFail(c, fe)
	}

	var sr models.ServiceRequest
	if err := h.DB.First(&sr, "id = ?", requestID).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}
	if sr.ClientID != actor.ID {
		return respondDomainErr(c, models.ErrForbidden, "")
	}
	if sr.Status != models.StatusPayoutCompleted {
		return respondDomainErr(c, models.ErrStatusConflict, sr.Status)
	}
	if sr.CAID == nil {
		return respondDomainErr(c, models.ErrStatusConflict, sr.Status)
	}

	review := models.Review{
		RequestID: sr.ID,
		ClientID:  actor.ID,
		CAID:      *sr.CAID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
	}
	if err := h.DB.Create(&review).Error; err != nil {
		if isUniqueViolation(err) {
			return respondDomainErr(c, models.ErrAlreadyReviewed, sr.Status)
		}
		return fail(c, fiber.StatusInternalServerError, "failed to create review")
	}

	recordActivity(h.DB, &sr.ID, &actor.ID, "review_posted",
		fmt.Sprintf("client rated %q %d/5", sr.Title, review.Rating), nil)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": review})
}

// Get returns the review on a request, visible to its parties and admins.
func (h *ReviewHandler) Get(c *fiber.Ctx) error {
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
	if !canViewRequest(actor, &sr) {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	var review models.Review
	if err := h.DB.Preload("Client").First(&review, "request_id = ?", requestID).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}
	return c.JSON(fiber.Map{"success": true, "data": review})
}
