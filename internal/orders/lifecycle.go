package orders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

const (
	ReasonOrderNotFound   pkgerrors.Reason = "ORDER_NOT_FOUND"
	ReasonOrderNotPending pkgerrors.Reason = "ORDER_NOT_PENDING"
)

// FromQuote derives a pending order, copying quantity and price from the accepted quote.
func FromQuote(req models.Requirement, quote models.Quote) *models.Order {
	return &models.Order{
		RequirementID: req.ID,
		QuoteID:       quote.ID,
		BuyerID:       req.BuyerID,
		MerchantID:    quote.MerchantID,
		Quantity:      quote.Quantity,
		Price:         quote.Price,
		Status:        enums.OrderStatusPending,
	}
}

// Total is quantity times unit price.
func Total(order models.Order) decimal.Decimal {
	return order.Quantity.Mul(order.Price)
}

// CheckPending allows confirm and cancel only while the order is pending.
func CheckPending(order models.Order) error {
	if order.Status == enums.OrderStatusPending {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already "+string(order.Status)).
		WithReason(ReasonOrderNotPending).
		WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
}

// ErrNotFound reports a requirement without a derived order.
func ErrNotFound() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithReason(ReasonOrderNotFound)
}
