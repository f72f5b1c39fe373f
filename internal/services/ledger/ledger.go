// Package ledger records payout bookkeeping rows. It never moves money; the
// platform only tracks what each CA is owed once a request is archived.
package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taxbridge/internal/models"
)

type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// BuildEntry constructs the payout row for an archived request. The request
// must carry an assigned CA and a final price.
func BuildEntry(req *models.ServiceRequest) (*models.PayoutEntry, error) {
	if req.CAID == nil {
		return nil, errors.New("request has no assigned ca")
	}
	if req.FinalPrice == nil {
		return nil, errors.New("request has no final price")
	}
	return &models.PayoutEntry{
		ID:          uuid.New(),
		RequestID:   req.ID,
		CAID:        *req.CAID,
		Amount:      *req.FinalPrice,
		Description: fmt.Sprintf("payout for %q", req.Title),
	}, nil
}

// RecordPayout writes the entry inside the caller's transaction so it commits
// or rolls back together with the payout_completed transition.
func (s *Service) RecordPayout(tx *gorm.DB, req *models.ServiceRequest) error {
	entry, err := BuildEntry(req)
	if err != nil {
		return err
	}
	return tx.Create(entry).Error
}
