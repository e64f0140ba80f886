package requirements

import (
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// Signal summarises the quotes that belong to req, keeping the candidate
// that outranks the others. Quotes for other requirements are ignored.
func Signal(req models.Requirement, quotes []models.Quote) enums.QuoteSignal {
	seen, rejected, accepted := 0, 0, 0
	for _, q := range quotes {
		if q.RequirementID != req.ID {
			continue
		}
		seen++
		switch q.Status {
		case enums.QuoteStatusAccepted:
			accepted++
		case enums.QuoteStatusRejected:
			rejected++
		}
	}

	signal := enums.QuoteSignalNone
	consider := func(candidate enums.QuoteSignal, holds bool) {
		if holds && candidate.Outranks(signal) {
			signal = candidate
		}
	}
	consider(enums.QuoteSignalResponded, seen > 0)
	consider(enums.QuoteSignalRejectedOnly, seen > 0 && rejected == seen)
	consider(enums.QuoteSignalSelected, accepted > 0)
	return signal
}

// DeriveStatus recomputes a requirement's stored status from its quotes.
// Precedence is selected, then rejected-only, then responded, then active.
// Terminal, draft and selected statuses are returned unchanged and responded
// is never downgraded; a requirement whose quotes were all rejected stays
// responded.
func DeriveStatus(req models.Requirement, quotes []models.Quote) enums.RequirementStatus {
	stored := req.Status
	if stored.IsTerminal() || stored == enums.RequirementStatusDraft || stored == enums.RequirementStatusSelected {
		return stored
	}
	switch Signal(req, quotes) {
	case enums.QuoteSignalSelected:
		return enums.RequirementStatusSelected
	case enums.QuoteSignalRejectedOnly, enums.QuoteSignalResponded:
		return enums.RequirementStatusResponded
	default:
		return stored
	}
}
