package negotiation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/internal/orders"
	"github.com/angelmondragon/sourcing-backend/internal/quotes"
	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

func (s *service) AcceptQuote(ctx context.Context, actor types.Actor, quoteID uuid.UUID) (result *AcceptResult, err error) {
	started := time.Now()
	defer func() {
		s.observe(ctx, opAcceptQuote, started, err, map[string]any{"quote_id": quoteID.String()})
	}()

	today := s.calendar.Today()
	now := s.calendar.Timestamp()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		quoteRepo := s.quotes.WithTx(tx)
		reqRepo := s.requirements.WithTx(tx)

		quote, req, err := s.loadQuoteAndRequirement(ctx, quoteRepo, reqRepo, quoteID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(actor, *req); err != nil {
			return err
		}
		if err := quotes.CheckDecidable(*quote); err != nil {
			return err
		}
		siblings, err := quoteRepo.ListByRequirement(ctx, req.ID)
		if err != nil {
			return dependency(err, "list quotes")
		}
		if err := quotes.CheckSingleWinner(*quote, siblings); err != nil {
			return err
		}
		if !requirements.OpenForQuotes(*req, today) {
			return requirements.ErrNotOpen(req.ID, requirements.EffectiveStatus(*req, today), requirements.Expired(*req, today))
		}

		accepted, err := quoteRepo.Accept(ctx, quote, now)
		if err != nil {
			return dependency(err, "accept quote")
		}
		if !accepted {
			// lost a race: report whichever precondition no longer holds
			if winner, findErr := quoteRepo.FindAccepted(ctx, req.ID); findErr == nil {
				return quotes.ErrDuplicateAcceptance(req.ID, winner.ID)
			}
			current, findErr := quoteRepo.FindByID(ctx, quote.ID)
			if findErr != nil {
				return dependency(findErr, "reload quote")
			}
			return quotes.ErrNotNew(current.ID, current.Status)
		}
		quote.Status = enums.QuoteStatusAccepted
		quote.DecidedAt = &now

		if err := requirements.CheckTransition(req, enums.RequirementStatusSelected); err != nil {
			return err
		}
		if err := reqRepo.UpdateStatus(ctx, req.ID, enums.RequirementStatusSelected); err != nil {
			return dependency(err, "mark requirement selected")
		}
		req.Status = enums.RequirementStatusSelected

		order, err := s.orders.WithTx(tx).Create(ctx, orders.FromQuote(*req, *quote))
		if err != nil {
			return dependency(err, "create order")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteAccepted,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Actor:         actorRef(actor),
			Data: payloads.QuoteDecisionEvent{
				QuoteID:           quote.ID,
				RequirementID:     req.ID,
				BuyerID:           req.BuyerID,
				MerchantID:        quote.MerchantID,
				Status:            quote.Status,
				RequirementStatus: req.Status,
				OrderID:           &order.ID,
			},
		}); err != nil {
			return dependency(err, "emit quote accepted")
		}

		result = &AcceptResult{
			Quote:       quotes.NewView(*quote),
			Order:       orders.NewView(*order),
			Requirement: RequirementRef{ID: req.ID, Status: req.Status},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RejectQuote declines a new quote whatever state its requirement is in. A
// closed, selected or confirmed requirement keeps its status.
func (s *service) RejectQuote(ctx context.Context, actor types.Actor, quoteID uuid.UUID) (view *quotes.View, err error) {
	started := time.Now()
	defer func() {
		s.observe(ctx, opRejectQuote, started, err, map[string]any{"quote_id": quoteID.String()})
	}()

	now := s.calendar.Timestamp()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		quoteRepo := s.quotes.WithTx(tx)
		reqRepo := s.requirements.WithTx(tx)

		quote, req, err := s.loadQuoteAndRequirement(ctx, quoteRepo, reqRepo, quoteID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(actor, *req); err != nil {
			return err
		}
		if err := quotes.CheckDecidable(*quote); err != nil {
			return err
		}

		rejected, err := quoteRepo.Reject(ctx, quote.ID, now)
		if err != nil {
			return dependency(err, "reject quote")
		}
		if !rejected {
			current, findErr := quoteRepo.FindByID(ctx, quote.ID)
			if findErr != nil {
				return dependency(findErr, "reload quote")
			}
			return quotes.ErrNotNew(current.ID, current.Status)
		}
		quote.Status = enums.QuoteStatusRejected
		quote.DecidedAt = &now

		siblings, err := quoteRepo.ListByRequirement(ctx, req.ID)
		if err != nil {
			return dependency(err, "list quotes")
		}
		derived := requirements.DeriveStatus(*req, siblings)
		if derived != req.Status && requirements.CanTransition(req.Status, derived) {
			if err := reqRepo.UpdateStatus(ctx, req.ID, derived); err != nil {
				return dependency(err, "recompute requirement status")
			}
			req.Status = derived
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteRejected,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Actor:         actorRef(actor),
			Data: payloads.QuoteDecisionEvent{
				QuoteID:           quote.ID,
				RequirementID:     req.ID,
				BuyerID:           req.BuyerID,
				MerchantID:        quote.MerchantID,
				Status:            quote.Status,
				RequirementStatus: req.Status,
			},
		}); err != nil {
			return dependency(err, "emit quote rejected")
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

// loadQuoteAndRequirement reads the quote, then locks its parent. A quote
// whose requirement was deleted is reported as not found.
func (s *service) loadQuoteAndRequirement(ctx context.Context, quoteRepo quotes.Repository, reqRepo requirements.Repository, quoteID uuid.UUID) (*models.Quote, *models.Requirement, error) {
	quote, err := quoteRepo.FindByID(ctx, quoteID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, quotes.ErrNotFound()
		}
		return nil, nil, dependency(err, "load quote")
	}
	req, err := requirements.LoadForUpdate(ctx, reqRepo, quote.RequirementID)
	if err != nil {
		return nil, nil, err
	}
	// re-read under the lock so the status check sees committed decisions
	quote, err = quoteRepo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, nil, dependency(err, "reload quote")
	}
	return quote, req, nil
}

func requireOwnerOrAdmin(actor types.Actor, req models.Requirement) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsBuyer() && req.BuyerID == actor.UserID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the owning buyer may decide quotes")
}
