package quotes

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// CheckDecidable allows accept and reject only from new.
func CheckDecidable(q models.Quote) error {
	if q.Status != enums.QuoteStatusNew {
		return ErrNotNew(q.ID, q.Status)
	}
	return nil
}

// CheckSingleWinner fails when any sibling of q in quotes is accepted.
func CheckSingleWinner(q models.Quote, quotes []models.Quote) error {
	if winner := Accepted(q.RequirementID, quotes); winner != nil && winner.ID != q.ID {
		return ErrDuplicateAcceptance(q.RequirementID, winner.ID)
	}
	return nil
}

// Accepted returns the accepted quote for requirementID, if any.
func Accepted(requirementID uuid.UUID, quotes []models.Quote) *models.Quote {
	for i := range quotes {
		if quotes[i].RequirementID == requirementID && quotes[i].Status == enums.QuoteStatusAccepted {
			return &quotes[i]
		}
	}
	return nil
}
