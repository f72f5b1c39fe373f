package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"taxbridge/internal/models"
	"taxbridge/internal/realtime"
)

// CAOnboardingHandler walks a CA through the four profile steps and hands the
// finished profile to admin review. Verification itself stays with the admin.
type CAOnboardingHandler struct {
	DB  *gorm.DB
	Hub *realtime.Hub
}

func NewCAOnboardingHandler(db *gorm.DB, hub *realtime.Hub) *CAOnboardingHandler {
	return &CAOnboardingHandler{DB: db, Hub: hub}
}

func (h *CAOnboardingHandler) Routes(r fiber.Router) {
	g := r.Group("/ca/onboarding")
	g.Get("/", h.Get)
	g.Patch("/about", h.UpdateAbout)
	g.Patch("/practice", h.UpdatePractice)
	g.Patch("/credential", h.UpdateCredential)
	g.Patch("/contact", h.UpdateContact)
	g.Post("/submit", h.Submit)
}

func isDigitsLen(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	return phone
}

func bumpStep(current, to int) int {
	if to > current {
		return to
	}
	return current
}

func (h *CAOnboardingHandler) findOrCreateProfile(tx *gorm.DB, user *models.User) (*models.CAProfile, error) {
	var p models.CAProfile
	err := tx.Where("user_id = ?", user.ID).First(&p).Error
	if err == nil {
		// keep contact_email in sync with the users table
		email := strings.ToLower(strings.TrimSpace(user.Email))
		if p.ContactEmail != email {
			p.ContactEmail = email
			if err := tx.Save(&p).Error; err != nil {
				return nil, err
			}
		}
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	p = models.CAProfile{
		UserID:           user.ID,
		OnboardingStep:   1,
		OnboardingStatus: models.OnboardingDraft,
		ContactEmail:     strings.ToLower(strings.TrimSpace(user.Email)),
	}
	if err := tx.Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// editable reports whether the profile can still be changed. A rejected
// profile reopens for edits so the CA can fix and resubmit.
func editable(p *models.CAProfile) bool {
	return p.OnboardingStatus == models.OnboardingDraft || p.OnboardingStatus == models.OnboardingRejected
}

func (h *CAOnboardingHandler) loadProfile(c *fiber.Ctx) (*models.User, *models.CAProfile, error) {
	actor, err := fetchActor(h.DB, c)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role != models.RoleCA {
		return nil, nil, respondDomainErr(c, models.ErrForbidden, "")
	}
	p, err := h.findOrCreateProfile(h.DB, actor)
	if err != nil {
		return nil, nil, fail(c, fiber.StatusInternalServerError, "failed to load profile")
	}
	return actor, p, nil
}

func (h *CAOnboardingHandler) Get(c *fiber.Ctx) error {
	_, p, err := h.loadProfile(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

// Step 1: about
func (h *CAOnboardingHandler) UpdateAbout(c *fiber.Ctx) error {
	_, p, err := h.loadProfile(c)
	if err != nil {
		return err
	}
	if !editable(p) {
		return fail(c, fiber.StatusConflict, "profile already submitted")
	}

	var req struct {
		About string `json:"about"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	about := strings.TrimSpace(req.About)
	if len(about) < 10 {
		fe := FieldErrors{}
		fe.Add("about", "about must be at least 10 characters")
		return validationFail(c, fe)
	}

	p.About = about
	p.OnboardingStep = bumpStep(p.OnboardingStep, 2)
	if err := h.DB.Save(p).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to update profile")
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

// Step 2: practice details
func (h *CAOnboardingHandler) UpdatePractice(c *fiber.Ctx) error {
	_, p, err := h.loadProfile(c)
	if err != nil {
		return err
	}
	if !editable(p) {
		return fail(c, fiber.StatusConflict, "profile already submitted")
	}

	var req struct {
		ExperienceYears int    `json:"experience_years"`
		Specialization  string `json:"specialization"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	fe := FieldErrors{}
	if req.ExperienceYears < 0 || req.ExperienceYears > 60 {
		fe.Add("experience_years", "experience_years must be between 0 and 60")
	}
	if strings.TrimSpace(req.Specialization) == "" {
		fe.Add("specialization", "specialization is required")
	}
	if len(fe) > 0 {
		return validationFail(c, fe)
	}
	if p.About == "" {
		return fail(c, fiber.StatusBadRequest, "complete the about step first")
	}

	p.ExperienceYears = req.ExperienceYears
	p.Specialization = strings.TrimSpace(req.Specialization)
	p.OnboardingStep = bumpStep(p.OnboardingStep, 3)
	if err := h.DB.Save(p).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to update profile")
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

// Step 3: credential
func (h *CAOnboardingHandler) UpdateCredential(c *fiber.Ctx) error {
	actor, p, err := h.loadProfile(c)
	if err != nil {
		return err
	}
	if !editable(p) {
		return fail(c, fiber.StatusConflict, "profile already submitted")
	}

	var req struct {
		MembershipNo  string `json:"membership_no"`
		Certification string `json:"certification"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	membership := strings.TrimSpace(req.MembershipNo)
	if !isDigitsLen(membership, 6) {
		fe := FieldErrors{}
		fe.Add("membership_no", "membership_no must be 6 digits")
		return validationFail(c, fe)
	}
	if p.Specialization == "" {
		return fail(c, fiber.StatusBadRequest, "complete the practice step first")
	}

	var count int64
	if err := h.DB.Model(&models.CAProfile{}).
		Where("membership_no = ? AND user_id <> ?", membership, actor.ID).
		Count(&count).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to validate membership number")
	}
	if count > 0 {
		return fail(c, fiber.StatusConflict, "membership number already registered")
	}

	p.MembershipNo = membership
	p.Certification = strings.TrimSpace(req.Certification)
	p.OnboardingStep = bumpStep(p.OnboardingStep, 4)
	if err := h.DB.Save(p).Error; err != nil {
		if isUniqueViolation(err) {
			return fail(c, fiber.StatusConflict, "membership number already registered")
		}
		return fail(c, fiber.StatusInternalServerError, "failed to update profile")
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

// Step 4: contact confirm
func (h *CAOnboardingHandler) UpdateContact(c *fiber.Ctx) error {
	_, p, err := h.loadProfile(c)
	if err != nil {
		return err
	}
	if !editable(p) {
		return fail(c, fiber.StatusConflict, "profile already submitted")
	}

	var req struct {
		ContactPhone string `json:"contact_phone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	phone := normalizePhone(req.ContactPhone)
	if len(phone) < 10 {
		fe := FieldErrors{}
		fe.Add("contact_phone", "contact_phone is too short")
		return validationFail(c, fe)
	}
	if p.MembershipNo == "" {
		return fail(c, fiber.StatusBadRequest, "complete the credential step first")
	}

	p.ContactPhone = phone
	p.OnboardingStep = bumpStep(p.OnboardingStep, 4)
	if err := h.DB.Save(p).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to update profile")
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

// Submit locks the profile and queues it for admin review.
func (h *CAOnboardingHandler) Submit(c *fiber.Ctx) error {
	actor, p, err := h.loadProfile(c)
	if err != nil {
		return err
	}
	if !editable(p) {
		return fail(c, fiber.StatusConflict, "profile already submitted")
	}

	missing := []string{}
	if p.About == "" {
		missing = append(missing, "about")
	}
	if p.Specialization == "" {
		missing = append(missing, "specialization")
	}
	if !isDigitsLen(p.MembershipNo, 6) {
		missing = append(missing, "membership_no")
	}
	if p.ContactPhone == "" {
		missing = append(missing, "contact_phone")
	}
	if len(missing) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "profile is incomplete",
			"missing": missing,
		})
	}

	p.OnboardingStatus = models.OnboardingPendingReview
	if err := h.DB.Save(p).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to submit profile")
	}

	recordActivity(h.DB, nil, &actor.ID, "ca_profile_submitted",
		fmt.Sprintf("%s submitted their profile for review", actor.Name), nil)
	h.Hub.EmitToRole(models.RoleAdmin, realtime.EventNewPendingJob, fiber.Map{
		"kind":    "ca_profile",
		"user_id": actor.ID.String(),
		"name":    actor.Name,
	})

	return c.JSON(fiber.Map{"success": true, "message": "profile submitted for review", "data": p})
}

// PublicProfile is the card other parties can see: practice details and
// review stats, never contact fields.
func (h *CAOnboardingHandler) PublicProfile(c *fiber.Ctx) error {
	caID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid user ID")
	}

	var user models.User
	if err := h.DB.Preload("CAProfile").
		First(&user, "id = ? AND role = ?", caID, models.RoleCA).Error; err != nil {
		return respondDomainErr(c, models.ErrNotFound, "")
	}
	if user.CAProfile == nil || user.CAProfile.OnboardingStatus != models.OnboardingApproved {
		return respondDomainErr(c, models.ErrNotFound, "")
	}

	var stats struct {
		AvgRating   float64
		ReviewCount int64
	}
	h.DB.Model(&models.Review{}).
		Where("ca_id = ?", caID).
		Select("COALESCE(AVG(rating), 0) as avg_rating, COUNT(id) as review_count").
		Scan(&stats)

	var reviews []models.Review
	h.DB.Where("ca_id = ?", caID).Order("created_at DESC").Limit(20).Find(&reviews)

	outReviews := make([]fiber.Map, 0, len(reviews))
	for _, r := range reviews {
		outReviews = append(outReviews, fiber.Map{
			"rating":     r.Rating,
			"comment":    r.Comment,
			"created_at": r.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":               user.ID,
			"name":             user.Name,
			"about":            user.CAProfile.About,
			"experience_years": user.CAProfile.ExperienceYears,
			"specialization":   user.CAProfile.Specialization,
			"certification":    user.CAProfile.Certification,
			"joined_at":        user.CreatedAt,
			"rating":           stats.AvgRating,
			"review_count":     stats.ReviewCount,
		},
	})
}
