package requirements

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/internal/pricing"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// DateLayout is the wire format of delivery deadlines.
const DateLayout = "2006-01-02"

// CreateInput carries a new requirement. Quantities arrive as free text.
type CreateInput struct {
	Grade            enums.Grade
	Origin           enums.Origin
	RequiredQuantity string
	MinimumQuantity  string
	ExpectedPrice    decimal.Decimal
	AllowLowerBid    bool
	DeliveryLocation string
	DeliveryCity     string
	DeliveryCountry  string
	DeliveryDeadline time.Time
	Specifications   *string
	IsDraft          bool
}

// UpdateInput is a partial edit; nil fields are left unchanged.
type UpdateInput struct {
	Grade            *enums.Grade
	Origin           *enums.Origin
	RequiredQuantity *string
	MinimumQuantity  *string
	ExpectedPrice    *decimal.Decimal
	AllowLowerBid    *bool
	DeliveryLocation *string
	DeliveryCity     *string
	DeliveryCountry  *string
	DeliveryDeadline *time.Time
	Specifications   *string
}

// Summary is the API shape of a requirement.
type Summary struct {
	ID               uuid.UUID               `json:"id"`
	BuyerID          uuid.UUID               `json:"buyer_id"`
	Grade            enums.Grade             `json:"grade"`
	Origin           enums.Origin            `json:"origin"`
	RequiredQuantity decimal.Decimal         `json:"required_quantity"`
	MinimumQuantity  decimal.Decimal         `json:"minimum_quantity"`
	ExpectedPrice    decimal.Decimal         `json:"expected_price"`
	CeilingPrice     *decimal.Decimal        `json:"ceiling_price,omitempty"`
	AllowLowerBid    bool                    `json:"allow_lower_bid"`
	DeliveryLocation string                  `json:"delivery_location,omitempty"`
	DeliveryCity     string                  `json:"delivery_city,omitempty"`
	DeliveryCountry  string                  `json:"delivery_country,omitempty"`
	DeliveryDeadline string                  `json:"delivery_deadline"`
	Specifications   *string                 `json:"specifications,omitempty"`
	IsDraft          bool                    `json:"is_draft"`
	Status           enums.RequirementStatus `json:"status"`
	StoredStatus     enums.RequirementStatus `json:"stored_status"`
	Expired          bool                    `json:"expired"`
	Signal           enums.QuoteSignal       `json:"quote_signal,omitempty"`
	QuoteCount       int                     `json:"quote_count,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// NewSummary maps a row to its API shape, resolving expiry against today.
func NewSummary(req models.Requirement, today time.Time) Summary {
	out := Summary{
		ID:               req.ID,
		BuyerID:          req.BuyerID,
		Grade:            req.Grade,
		Origin:           req.Origin,
		RequiredQuantity: req.RequiredQuantity,
		MinimumQuantity:  req.MinimumQuantity,
		ExpectedPrice:    req.ExpectedPrice,
		AllowLowerBid:    req.AllowLowerBid,
		DeliveryLocation: req.DeliveryLocation,
		DeliveryCity:     req.DeliveryCity,
		DeliveryCountry:  req.DeliveryCountry,
		DeliveryDeadline: req.DeliveryDeadline.Format(DateLayout),
		Specifications:   req.Specifications,
		IsDraft:          req.IsDraft,
		Status:           EffectiveStatus(req, today),
		StoredStatus:     req.Status,
		Expired:          Expired(req, today),
		CreatedAt:        req.CreatedAt,
		UpdatedAt:        req.UpdatedAt,
	}
	if ceiling, ok := pricing.CeilingPrice(req.Grade, req.Origin); ok {
		out.CeilingPrice = &ceiling
	}
	return out
}

// WithQuotes attaches the quote signal computed from quotes.
func (s Summary) WithQuotes(req models.Requirement, quotes []models.Quote) Summary {
	s.Signal = Signal(req, quotes)
	count := 0
	for _, q := range quotes {
		if q.RequirementID == req.ID {
			count++
		}
	}
	s.QuoteCount = count
	return s
}

// List is a cursor page of summaries.
type List struct {
	Items      []Summary `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}
