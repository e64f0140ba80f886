package quotes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

// SubmitInput is a merchant's quote. Quantity arrives as free text.
type SubmitInput struct {
	RequirementID uuid.UUID
	Quantity      string
	Price         decimal.Decimal
	Remarks       *string
}

// View is the API shape of a quote.
type View struct {
	ID            uuid.UUID         `json:"id"`
	RequirementID uuid.UUID         `json:"requirement_id"`
	MerchantID    uuid.UUID         `json:"merchant_id"`
	Quantity      decimal.Decimal   `json:"quantity"`
	Price         decimal.Decimal   `json:"price"`
	Total         decimal.Decimal   `json:"total"`
	Remarks       *string           `json:"remarks,omitempty"`
	Status        enums.QuoteStatus `json:"status"`
	DecidedAt     *time.Time        `json:"decided_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewView maps a row to its API shape.
func NewView(q models.Quote) View {
	return View{
		ID:            q.ID,
		RequirementID: q.RequirementID,
		MerchantID:    q.MerchantID,
		Quantity:      q.Quantity,
		Price:         q.Price,
		Total:         q.Quantity.Mul(q.Price),
		Remarks:       q.Remarks,
		Status:        q.Status,
		DecidedAt:     q.DecidedAt,
		CreatedAt:     q.CreatedAt,
	}
}

// Visible filters quotes on req for viewer. The owning buyer and admins see
// every quote; a merchant sees only its own; anyone else sees nothing.
func Visible(viewer types.Actor, req models.Requirement, quotes []models.Quote) []View {
	out := make([]View, 0, len(quotes))
	for _, q := range quotes {
		if q.RequirementID != req.ID {
			continue
		}
		switch {
		case viewer.IsAdmin():
		case viewer.IsBuyer() && req.BuyerID == viewer.UserID:
		case viewer.IsMerchant() && q.MerchantID == viewer.UserID:
		default:
			continue
		}
		out = append(out, NewView(q))
	}
	return out
}
