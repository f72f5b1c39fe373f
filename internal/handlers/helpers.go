package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"taxbridge/internal/models"
)

func getUserUUID(c *fiber.Ctx) (uuid.UUID, error) {
	v := c.Locals("userId")
	if v == nil {
		return uuid.Nil, fmt.Errorf("unauthorized")
	}

	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case string:
		return uuid.Parse(t)
	case []byte:
		return uuid.ParseBytes(t)
	default:
		return uuid.Nil, fmt.Errorf("invalid userId type: %T", v)
	}
}

// fetchActor re-loads the live user row for the session on every call. A token
// for a deleted or deactivated account is unauthenticated, not forbidden.
func fetchActor(db *gorm.DB, c *fiber.Ctx) (*models.User, error) {
	uid, err := getUserUUID(c)
	if err != nil {
		return nil, fiber.ErrUnauthorized
	}
	var u models.User
	if err := db.First(&u, "id = ?", uid).Error; err != nil {
		return nil, fiber.ErrUnauthorized
	}
	if !u.IsActive {
		return nil, fiber.ErrUnauthorized
	}
	return &u, nil
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// respondDomainErr maps the shared error vars onto HTTP statuses. Conflict
// responses carry the request's actual status so the caller can reconcile.
func respondDomainErr(c *fiber.Ctx, err error, currentStatus models.RequestStatus) error {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return fail(c, fiber.StatusNotFound, "not found")
	case errors.Is(err, models.ErrForbidden):
		return fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrStatusConflict),
		errors.Is(err, models.ErrBiddingClosed),
		errors.Is(err, models.ErrDuplicateBid),
		errors.Is(err, models.ErrAlreadyReviewed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":        false,
			"message":        err.Error(),
			"current_status": currentStatus,
		})
	case errors.Is(err, models.ErrUnverifiedCA), errors.Is(err, models.ErrWorkspaceLocked):
		return fail(c, fiber.StatusForbidden, err.Error())
	default:
		return fail(c, fiber.StatusInternalServerError, "internal error")
	}
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func validationFail(c *fiber.Ctx, errs FieldErrors) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "Validation error",
		"errors":  errs,
	})
}
