// Package projections derives the read views of the negotiation from the
// requirement, quote and order collections. Nothing here is persisted.
package projections

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/internal/orders"
	"github.com/angelmondragon/sourcing-backend/internal/quotes"
	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// OpenRequirement is a requirement a merchant may still quote on.
type OpenRequirement struct {
	requirements.Summary
	MyQuoteCount int `json:"my_quote_count"`
}

// MyQuote is a merchant's quote joined with the requirement it answers.
type MyQuote struct {
	quotes.View
	Requirement RequirementDigest `json:"requirement"`
}

// Enquiry is a quote received by a buyer, joined with the requirement it answers.
type Enquiry struct {
	quotes.View
	Requirement RequirementDigest `json:"requirement"`
}

// Transaction is a confirmed requirement with its accepted quote and order.
type Transaction struct {
	Requirement RequirementDigest `json:"requirement"`
	Quote       quotes.View       `json:"quote"`
	Order       *orders.View      `json:"order,omitempty"`
	Total       decimal.Decimal   `json:"total"`
}

// RequirementDigest is the subset of requirement fields shown next to a quote.
type RequirementDigest struct {
	ID               uuid.UUID               `json:"id"`
	BuyerID          uuid.UUID               `json:"buyer_id"`
	Grade            enums.Grade             `json:"grade"`
	Origin           enums.Origin            `json:"origin"`
	RequiredQuantity decimal.Decimal         `json:"required_quantity"`
	ExpectedPrice    decimal.Decimal         `json:"expected_price"`
	DeliveryCity     string                  `json:"delivery_city,omitempty"`
	DeliveryCountry  string                  `json:"delivery_country,omitempty"`
	DeliveryDeadline string                  `json:"delivery_deadline"`
	Status           enums.RequirementStatus `json:"status"`
}

func digest(req models.Requirement, today time.Time) RequirementDigest {
	return RequirementDigest{
		ID:               req.ID,
		BuyerID:          req.BuyerID,
		Grade:            req.Grade,
		Origin:           req.Origin,
		RequiredQuantity: req.RequiredQuantity,
		ExpectedPrice:    req.ExpectedPrice,
		DeliveryCity:     req.DeliveryCity,
		DeliveryCountry:  req.DeliveryCountry,
		DeliveryDeadline: req.DeliveryDeadline.Format(requirements.DateLayout),
		Status:           requirements.EffectiveStatus(req, today),
	}
}

func indexRequirements(reqs []models.Requirement) map[uuid.UUID]models.Requirement {
	out := make(map[uuid.UUID]models.Requirement, len(reqs))
	for _, req := range reqs {
		out[req.ID] = req
	}
	return out
}

func groupQuotes(qs []models.Quote) map[uuid.UUID][]models.Quote {
	out := make(map[uuid.UUID][]models.Quote)
	for _, q := range qs {
		out[q.RequirementID] = append(out[q.RequirementID], q)
	}
	return out
}

// OpenForMerchant lists requirements in active, viewed or responded whose
// deadline is today or later. Requirements owned by the merchant are skipped.
func OpenForMerchant(merchantID uuid.UUID, reqs []models.Requirement, qs []models.Quote, today time.Time) []OpenRequirement {
	mine := make(map[uuid.UUID]int)
	for _, q := range qs {
		if q.MerchantID == merchantID {
			mine[q.RequirementID]++
		}
	}
	out := make([]OpenRequirement, 0, len(reqs))
	for _, req := range reqs {
		if req.BuyerID == merchantID || !requirements.OpenForQuotes(req, today) {
			continue
		}
		out = append(out, OpenRequirement{
			Summary:      requirements.NewSummary(req, today),
			MyQuoteCount: mine[req.ID],
		})
	}
	return out
}

// MyQuotes joins the merchant's quotes with their requirements, newest first.
// Quotes whose requirement is gone are left out.
func MyQuotes(merchantID uuid.UUID, qs []models.Quote, reqs []models.Requirement, today time.Time) []MyQuote {
	byID := indexRequirements(reqs)
	out := make([]MyQuote, 0, len(qs))
	for _, q := range qs {
		if q.MerchantID != merchantID {
			continue
		}
		req, ok := byID[q.RequirementID]
		if !ok {
			continue
		}
		out = append(out, MyQuote{View: quotes.NewView(q), Requirement: digest(req, today)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// MerchantEnquiries lists quotes received on the buyer's requirements, newest first.
func MerchantEnquiries(buyerID uuid.UUID, reqs []models.Requirement, qs []models.Quote, today time.Time) []Enquiry {
	byID := indexRequirements(reqs)
	out := make([]Enquiry, 0, len(qs))
	for _, q := range qs {
		req, ok := byID[q.RequirementID]
		if !ok || req.BuyerID != buyerID {
			continue
		}
		out = append(out, Enquiry{View: quotes.NewView(q), Requirement: digest(req, today)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// MyRequirements lists the buyer's requirements with their quote signal.
func MyRequirements(buyerID uuid.UUID, reqs []models.Requirement, qs []models.Quote, today time.Time) []requirements.Summary {
	grouped := groupQuotes(qs)
	out := make([]requirements.Summary, 0, len(reqs))
	for _, req := range reqs {
		if req.BuyerID != buyerID {
			continue
		}
		out = append(out, requirements.NewSummary(req, today).WithQuotes(req, grouped[req.ID]))
	}
	return out
}

// ConfirmedTransactions joins confirmed requirements with their accepted quote
// and, when present, the order. A requirement without an accepted quote is
// left out.
func ConfirmedTransactions(reqs []models.Requirement, qs []models.Quote, placed []models.Order, today time.Time) []Transaction {
	grouped := groupQuotes(qs)
	ordersByReq := make(map[uuid.UUID]models.Order, len(placed))
	for _, o := range placed {
		ordersByReq[o.RequirementID] = o
	}
	out := make([]Transaction, 0, len(reqs))
	for _, req := range reqs {
		if req.Status != enums.RequirementStatusConfirmed {
			continue
		}
		winner := quotes.Accepted(req.ID, grouped[req.ID])
		if winner == nil {
			continue
		}
		tx := Transaction{
			Requirement: digest(req, today),
			Quote:       quotes.NewView(*winner),
			Total:       winner.Quantity.Mul(winner.Price),
		}
		if order, ok := ordersByReq[req.ID]; ok {
			view := orders.NewView(order)
			tx.Order = &view
		}
		out = append(out, tx)
	}
	return out
}
