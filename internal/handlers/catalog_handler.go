package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taxbridge/internal/models"
)

type CatalogHandler struct {
	DB *gorm.DB
}

func NewCatalogHandler(db *gorm.DB) *CatalogHandler {
	return &CatalogHandler{DB: db}
}

// List returns the active service categories, public so the request form can
// populate its dropdown before login.
func (h *CatalogHandler) List(c *fiber.Ctx) error {
	var cats []models.ServiceCategory
	if err := h.DB.Where("is_active = true").Order("name ASC").Find(&cats).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to fetch categories")
	}
	return c.JSON(fiber.Map{"success": true, "data": cats})
}

type categoryReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

func (h *CatalogHandler) Create(c *fiber.Ctx) error {
	var req categoryReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		fe := FieldErrors{}
		fe.Add("name", "name is required")
		return validationFail(c, fe)
	}

	cat := models.ServiceCategory{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if err := h.DB.Create(&cat).Error; err != nil {
		if isUniqueViolation(err) {
			return fail(c, fiber.StatusConflict, "category already exists")
		}
		return fail(c, fiber.StatusInternalServerError, "failed to create category")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": cat})
}

func (h *CatalogHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fail(c, fiber.StatusBadRequest, "invalid category ID")
	}

	var cat models.ServiceCategory
	if err := h.DB.First(&cat, "id = ?", id).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	var req categoryReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name != "" {
		cat.Name = req.Name
	}
	if req.Description != "" {
		cat.Description = req.Description
	}
	if req.IsActive != nil {
		cat.IsActive = *req.IsActive
	}

	if err := h.DB.Save(&cat).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to update category")
	}
	return c.JSON(fiber.Map{"success": true, "data": cat})
}
