package ledger

import (
	"testing"

	"github.com/google/uuid"

	"taxbridge/internal/models"
)

func TestBuildEntry(t *testing.T) {
	caID := uuid.New()
	price := int64(2000)
	req := &models.ServiceRequest{
		ID:         uuid.New(),
		Title:      "GST annual return",
		CAID:       &caID,
		FinalPrice: &price,
		Status:     models.StatusPayoutCompleted,
	}

	entry, err := BuildEntry(req)
	if err != nil {
		t.Fatal(err)
	}
	if entry.CAID != caID || entry.RequestID != req.ID || entry.Amount != 2000 {
		t.Errorf("bad entry: %+v", entry)
	}
}

func TestBuildEntry_MissingFields(t *testing.T) {
	if _, err := BuildEntry(&models.ServiceRequest{ID: uuid.New()}); err == nil {
		t.Error("expected error without assigned ca")
	}

	caID := uuid.New()
	if _, err := BuildEntry(&models.ServiceRequest{ID: uuid.New(), CAID: &caID}); err == nil {
		t.Error("expected error without final price")
	}
}
