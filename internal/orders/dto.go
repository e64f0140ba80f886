package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// View is the API shape of an order.
type View struct {
	ID            uuid.UUID         `json:"id"`
	RequirementID uuid.UUID         `json:"requirement_id"`
	QuoteID       uuid.UUID         `json:"quote_id"`
	BuyerID       uuid.UUID         `json:"buyer_id"`
	MerchantID    uuid.UUID         `json:"merchant_id"`
	Quantity      decimal.Decimal   `json:"quantity"`
	Price         decimal.Decimal   `json:"price"`
	Total         decimal.Decimal   `json:"total"`
	Status        enums.OrderStatus `json:"status"`
	ConfirmedAt   *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time        `json:"cancelled_at,omitempty"`
	CancelReason  *string           `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func NewView(order models.Order) View {
	return View{
		ID:            order.ID,
		RequirementID: order.RequirementID,
		QuoteID:       order.QuoteID,
		BuyerID:       order.BuyerID,
		MerchantID:    order.MerchantID,
		Quantity:      order.Quantity,
		Price:         order.Price,
		Total:         Total(order),
		Status:        order.Status,
		ConfirmedAt:   order.ConfirmedAt,
		CancelledAt:   order.CancelledAt,
		CancelReason:  order.CancelReason,
		CreatedAt:     order.CreatedAt,
	}
}
