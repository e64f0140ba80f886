package negotiation

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/internal/pricing"
	"github.com/angelmondragon/sourcing-backend/internal/quantity"
	"github.com/angelmondragon/sourcing-backend/internal/quotes"
	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

func (s *service) SubmitQuote(ctx context.Context, actor types.Actor, input quotes.SubmitInput) (view *quotes.View, err error) {
	started := time.Now()
	defer func() {
		s.observe(ctx, opSubmitQuote, started, err, map[string]any{
			"requirement_id": input.RequirementID.String(),
			"merchant_id":    actor.UserID.String(),
		})
	}()

	if !actor.IsMerchant() {
		return nil, forbidden("merchant role required to quote")
	}
	today := s.calendar.Today()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reqRepo := s.requirements.WithTx(tx)
		req, err := requirements.LoadForUpdate(ctx, reqRepo, input.RequirementID)
		if err != nil {
			return err
		}
		if req.BuyerID == actor.UserID {
			return forbidden("buyers cannot quote on their own requirement")
		}
		if !requirements.OpenForQuotes(*req, today) {
			return requirements.ErrNotOpen(req.ID, requirements.EffectiveStatus(*req, today), requirements.Expired(*req, today))
		}

		qty, err := quantity.Normalize(input.Quantity)
		if err != nil {
			return err
		}
		if err := quantity.Validate(qty, req.MinimumQuantity, req.RequiredQuantity); err != nil {
			return quantityOutOfRange(err)
		}
		if err := pricing.ValidateQuotePrice(input.Price, termsOf(*req)); err != nil {
			return err
		}

		quote, err := s.quotes.WithTx(tx).Create(ctx, &models.Quote{
			RequirementID: req.ID,
			MerchantID:    actor.UserID,
			Quantity:      qty,
			Price:         input.Price,
			Remarks:       trimRemarks(input.Remarks),
			Status:        enums.QuoteStatusNew,
		})
		if err != nil {
			return dependency(err, "create quote")
		}

		if requirements.CanTransition(req.Status, enums.RequirementStatusResponded) {
			if err := reqRepo.UpdateStatus(ctx, req.ID, enums.RequirementStatusResponded); err != nil {
				return dependency(err, "mark requirement responded")
			}
			req.Status = enums.RequirementStatusResponded
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteSubmitted,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Actor:         actorRef(actor),
			Data: payloads.QuoteSubmittedEvent{
				QuoteID:           quote.ID,
				RequirementID:     req.ID,
				BuyerID:           req.BuyerID,
				MerchantID:        quote.MerchantID,
				Quantity:          quote.Quantity,
				Price:             quote.Price,
				RequirementStatus: req.Status,
			},
		}); err != nil {
			return dependency(err, "emit quote submitted")
		}
		v := quotes.NewView(*quote)
		view = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func termsOf(req models.Requirement) pricing.Terms {
	return pricing.Terms{
		Grade:         req.Grade,
		Origin:        req.Origin,
		ExpectedPrice: req.ExpectedPrice,
		AllowLowerBid: req.AllowLowerBid,
	}
}

func trimRemarks(remarks *string) *string {
	if remarks == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*remarks)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
