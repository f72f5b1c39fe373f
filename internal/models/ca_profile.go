package models

import (
	"time"

	"github.com/google/uuid"
)

type OnboardingStatus string

const (
	OnboardingDraft         OnboardingStatus = "draft"
	OnboardingPendingReview OnboardingStatus = "pending_review"
	OnboardingApproved      OnboardingStatus = "approved"
	OnboardingRejected      OnboardingStatus = "rejected"
)

// CAProfile holds the professional details a CA fills in before admin review.
// Approving it is what sets User.IsVerified.
type CAProfile struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	OnboardingStep   int              `gorm:"not null;default:1" json:"onboarding_step"` // 1..4
	OnboardingStatus OnboardingStatus `gorm:"type:varchar(30);not null;default:'draft'" json:"onboarding_status"`

	// Step 1 - about
	About string `gorm:"type:text" json:"about"`

	// Step 2 - practice details
	ExperienceYears int    `json:"experience_years"`
	Specialization  string `gorm:"type:varchar(120)" json:"specialization"`

	// Step 3 - credential
	MembershipNo  string `gorm:"type:varchar(20)" json:"membership_no"`
	Certification string `gorm:"type:text" json:"certification"`

	// Step 4 - contact confirm
	ContactEmail string `gorm:"type:varchar(150)" json:"contact_email"`
	ContactPhone string `gorm:"type:varchar(30)" json:"contact_phone"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
