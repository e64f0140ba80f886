package requirements

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

func quote(reqID uuid.UUID, status enums.QuoteStatus) models.Quote {
	return models.Quote{ID: uuid.New(), RequirementID: reqID, Status: status}
}

func TestSignal(t *testing.T) {
	req := models.Requirement{ID: uuid.New(), Status: enums.RequirementStatusActive}
	other := uuid.New()

	assert.Equal(t, enums.QuoteSignalNone, Signal(req, nil))
	assert.Equal(t, enums.QuoteSignalNone, Signal(req, []models.Quote{quote(other, enums.QuoteStatusAccepted)}))
	assert.Equal(t, enums.QuoteSignalResponded, Signal(req, []models.Quote{
		quote(req.ID, enums.QuoteStatusNew),
		quote(req.ID, enums.QuoteStatusRejected),
	}))
	assert.Equal(t, enums.QuoteSignalRejectedOnly, Signal(req, []models.Quote{
		quote(req.ID, enums.QuoteStatusRejected),
		quote(req.ID, enums.QuoteStatusRejected),
	}))
	assert.Equal(t, enums.QuoteSignalSelected, Signal(req, []models.Quote{
		quote(req.ID, enums.QuoteStatusRejected),
		quote(req.ID, enums.QuoteStatusAccepted),
	}))
}

func TestDeriveStatus(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		stored enums.RequirementStatus
		quotes []models.Quote
		want   enums.RequirementStatus
	}{
		{"no quotes keeps active", enums.RequirementStatusActive, nil, enums.RequirementStatusActive},
		{"no quotes keeps viewed", enums.RequirementStatusViewed, nil, enums.RequirementStatusViewed},
		{"new quote responds", enums.RequirementStatusViewed, []models.Quote{quote(id, enums.QuoteStatusNew)}, enums.RequirementStatusResponded},
		{"accepted selects", enums.RequirementStatusResponded, []models.Quote{quote(id, enums.QuoteStatusNew), quote(id, enums.QuoteStatusAccepted)}, enums.RequirementStatusSelected},
		{"rejected only stays responded", enums.RequirementStatusResponded, []models.Quote{quote(id, enums.QuoteStatusRejected)}, enums.RequirementStatusResponded},
		{"responded never downgrades", enums.RequirementStatusResponded, nil, enums.RequirementStatusResponded},
		{"terminal untouched", enums.RequirementStatusClosed, []models.Quote{quote(id, enums.QuoteStatusAccepted)}, enums.RequirementStatusClosed},
		{"draft untouched", enums.RequirementStatusDraft, []models.Quote{quote(id, enums.QuoteStatusNew)}, enums.RequirementStatusDraft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := models.Requirement{ID: id, Status: tt.stored}
			assert.Equal(t, tt.want, DeriveStatus(req, tt.quotes))
		})
	}
}

func TestDeriveStatusProperties(t *testing.T) {
	statuses := []enums.RequirementStatus{
		enums.RequirementStatusActive,
		enums.RequirementStatusViewed,
		enums.RequirementStatusResponded,
		enums.RequirementStatusSelected,
		enums.RequirementStatusClosed,
		enums.RequirementStatusConfirmed,
	}
	quoteStatuses := []enums.QuoteStatus{enums.QuoteStatusNew, enums.QuoteStatusAccepted, enums.QuoteStatusRejected}

	rapid.Check(t, func(t *rapid.T) {
		id := uuid.New()
		stored := rapid.SampledFrom(statuses).Draw(t, "stored")
		picks := rapid.SliceOfN(rapid.SampledFrom(quoteStatuses), 0, 6).Draw(t, "quotes")
		quotes := make([]models.Quote, 0, len(picks))
		for _, status := range picks {
			quotes = append(quotes, quote(id, status))
		}
		req := models.Requirement{ID: id, Status: stored}
		got := DeriveStatus(req, quotes)

		if stored.IsTerminal() && got != stored {
			t.Fatalf("terminal %s rewritten to %s", stored, got)
		}
		if stored == enums.RequirementStatusResponded && got == enums.RequirementStatusActive {
			t.Fatalf("responded downgraded to active")
		}
		if !stored.IsTerminal() && Signal(req, quotes) == enums.QuoteSignalSelected && got != enums.RequirementStatusSelected {
			t.Fatalf("accepted quote must select, got %s", got)
		}
		if DeriveStatus(models.Requirement{ID: id, Status: got}, quotes) != got {
			t.Fatalf("derive is not idempotent from %s", got)
		}
	})
}
