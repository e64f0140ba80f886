// Package client talks to the sourcing API and keeps submissions that could
// not reach it in a local pending store until they are reconciled.
package client

import (
	"github.com/shopspring/decimal"
)

// SavedLocallyNotice is shown when a submission was kept in the pending store.
const SavedLocallyNotice = "Saved locally"

// Requirement is the canonical client view of a buyer requirement.
type Requirement struct {
	ID               string           `json:"id"`
	BuyerID          string           `json:"buyer_id,omitempty"`
	Grade            string           `json:"grade"`
	Origin           string           `json:"origin"`
	RequiredQuantity decimal.Decimal  `json:"required_quantity"`
	MinimumQuantity  decimal.Decimal  `json:"minimum_quantity"`
	ExpectedPrice    decimal.Decimal  `json:"expected_price"`
	CeilingPrice     *decimal.Decimal `json:"ceiling_price,omitempty"`
	AllowLowerBid    bool             `json:"allow_lower_bid"`
	DeliveryLocation string           `json:"delivery_location,omitempty"`
	DeliveryCity     string           `json:"delivery_city,omitempty"`
	DeliveryCountry  string           `json:"delivery_country,omitempty"`
	DeliveryDeadline string           `json:"delivery_deadline"`
	Specifications   *string          `json:"specifications,omitempty"`
	IsDraft          bool             `json:"is_draft"`
	Status           string           `json:"status"`
	Expired          bool             `json:"expired"`
	QuoteSignal      string           `json:"quote_signal,omitempty"`
	QuoteCount       int              `json:"quote_count,omitempty"`
	Pending          bool             `json:"pending"`
}

// Quote is the canonical client view of a merchant quote.
type Quote struct {
	ID            string          `json:"id"`
	RequirementID string          `json:"requirement_id"`
	MerchantID    string          `json:"merchant_id,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Total         decimal.Decimal `json:"total"`
	Remarks       *string         `json:"remarks,omitempty"`
	Status        string          `json:"status"`
	Pending       bool            `json:"pending"`
}

// CreateRequirementInput is the body of POST /v1/requirements.
// Quantities stay free text; the server normalizes them.
type CreateRequirementInput struct {
	Grade            string          `json:"grade"`
	Origin           string          `json:"origin"`
	RequiredQuantity string          `json:"required_quantity"`
	MinimumQuantity  string          `json:"minimum_quantity"`
	ExpectedPrice    decimal.Decimal `json:"expected_price"`
	AllowLowerBid    bool            `json:"allow_lower_bid"`
	DeliveryLocation string          `json:"delivery_location,omitempty"`
	DeliveryCity     string          `json:"delivery_city,omitempty"`
	DeliveryCountry  string          `json:"delivery_country,omitempty"`
	DeliveryDeadline string          `json:"delivery_deadline"`
	Specifications   *string         `json:"specifications,omitempty"`
	IsDraft          bool            `json:"is_draft"`
}

// SubmitQuoteInput is the body of POST /v1/requirements/{id}/quotes.
type SubmitQuoteInput struct {
	Quantity string          `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Remarks  *string         `json:"remarks,omitempty"`
}

// RequirementResult is returned by Workspace.CreateRequirement.
type RequirementResult struct {
	Requirement  Requirement
	SavedLocally bool
	Notice       string
}

// QuoteResult is returned by Workspace.SubmitQuote.
type QuoteResult struct {
	Quote        Quote
	SavedLocally bool
	Notice       string
}
