package handlers

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taxbridge/internal/models"
)

func TestBidResponseElidesContactFields(t *testing.T) {
	ca := &models.User{
		ID:    uuid.New(),
		Name:  "Ravi",
		Email: "ravi@example.com",
		Phone: "9876543210",
		Role:  models.RoleCA,
		CAProfile: &models.CAProfile{
			ExperienceYears: 8,
			Specialization:  "GST",
			Certification:   "ICAI",
			ContactEmail:    "ravi@example.com",
			ContactPhone:    "9876543210",
		},
	}
	bid := &models.Bid{
		ID:        uuid.New(),
		RequestID: uuid.New(),
		CAID:      ca.ID,
		Price:     15000,
		Proposal:  "I can file this within a week.",
		Status:    models.BidPending,
		CA:        ca,
	}

	got := toBidResponse(bid)
	if got.CA == nil {
		t.Fatal("bid card missing")
	}
	if got.CA.Name != "Ravi" || got.CA.ExperienceYears != 8 || got.CA.Specialization != "GST" {
		t.Fatalf("practice details wrong: %+v", got.CA)
	}

	// the card type carries no email or phone fields at all; assert the
	// serialized form never picks them up either
	out := fmt.Sprintf("%+v", got)
	for _, leak := range []string{"ravi@example.com", "9876543210"} {
		if strings.Contains(out, leak) {
			t.Fatalf("bid response leaked contact detail %q", leak)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{gorm.ErrDuplicatedKey, true},
		{errors.New(`duplicate key value violates unique constraint "idx_bids_request_ca"`), true},
		{errors.New("ERROR: something (SQLSTATE 23505)"), true},
		{errors.New("connection refused"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("isUniqueViolation(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
