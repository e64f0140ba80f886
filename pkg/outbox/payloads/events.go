package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// RequirementCreatedEvent announces a new requirement, draft or published.
type RequirementCreatedEvent struct {
	RequirementID    uuid.UUID               `json:"requirement_id"`
	BuyerID          uuid.UUID               `json:"buyer_id"`
	Grade            enums.Grade             `json:"grade"`
	Origin           enums.Origin            `json:"origin"`
	RequiredQuantity decimal.Decimal         `json:"required_quantity"`
	ExpectedPrice    decimal.Decimal         `json:"expected_price"`
	DeliveryDeadline time.Time               `json:"delivery_deadline"`
	Status           enums.RequirementStatus `json:"status"`
}

// RequirementPublishedEvent is emitted when a draft goes live.
type RequirementPublishedEvent struct {
	RequirementID uuid.UUID `json:"requirement_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
}

// RequirementSkippedEvent records who closed a requirement early.
type RequirementSkippedEvent struct {
	RequirementID  uuid.UUID               `json:"requirement_id"`
	BuyerID        uuid.UUID               `json:"buyer_id"`
	SkippedBy      uuid.UUID               `json:"skipped_by"`
	SkippedByRole  enums.ActorRole         `json:"skipped_by_role"`
	PreviousStatus enums.RequirementStatus `json:"previous_status"`
}

// RequirementExpiredEvent notifies the buyer that the delivery deadline passed.
type RequirementExpiredEvent struct {
	RequirementID    uuid.UUID               `json:"requirement_id"`
	BuyerID          uuid.UUID               `json:"buyer_id"`
	DeliveryDeadline time.Time               `json:"delivery_deadline"`
	StoredStatus     enums.RequirementStatus `json:"stored_status"`
}

// QuoteSubmittedEvent notifies the buyer of a new response.
type QuoteSubmittedEvent struct {
	QuoteID           uuid.UUID               `json:"quote_id"`
	RequirementID     uuid.UUID               `json:"requirement_id"`
	BuyerID           uuid.UUID               `json:"buyer_id"`
	MerchantID        uuid.UUID               `json:"merchant_id"`
	Quantity          decimal.Decimal         `json:"quantity"`
	Price             decimal.Decimal         `json:"price"`
	RequirementStatus enums.RequirementStatus `json:"requirement_status"`
}

// QuoteDecisionEvent covers both acceptance and rejection.
type QuoteDecisionEvent struct {
	QuoteID           uuid.UUID               `json:"quote_id"`
	RequirementID     uuid.UUID               `json:"requirement_id"`
	BuyerID           uuid.UUID               `json:"buyer_id"`
	MerchantID        uuid.UUID               `json:"merchant_id"`
	Status            enums.QuoteStatus       `json:"status"`
	RequirementStatus enums.RequirementStatus `json:"requirement_status"`
	OrderID           *uuid.UUID              `json:"order_id,omitempty"`
}

// OrderStatusEvent is emitted on order confirmation and cancellation.
type OrderStatusEvent struct {
	OrderID           uuid.UUID               `json:"order_id"`
	RequirementID     uuid.UUID               `json:"requirement_id"`
	QuoteID           uuid.UUID               `json:"quote_id"`
	BuyerID           uuid.UUID               `json:"buyer_id"`
	MerchantID        uuid.UUID               `json:"merchant_id"`
	Quantity          decimal.Decimal         `json:"quantity"`
	Price             decimal.Decimal         `json:"price"`
	Status            enums.OrderStatus       `json:"status"`
	RequirementStatus enums.RequirementStatus `json:"requirement_status"`
	Reason            string                  `json:"reason,omitempty"`
}
