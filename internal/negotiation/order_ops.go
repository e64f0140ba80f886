package negotiation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/internal/orders"
	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

const maxCancelReasonLen = 500

// ConfirmOrder finalises the order of a selected requirement. Either party
// to the order, or an admin, may confirm.
func (s *service) ConfirmOrder(ctx context.Context, actor types.Actor, requirementID uuid.UUID) (view *orders.View, err error) {
	started := time.Now()
	defer func() {
		s.observe(ctx, opConfirmOrder, started, err, map[string]any{"requirement_id": requirementID.String()})
	}()

	now := s.calendar.Timestamp()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		req, order, err := s.loadSelected(ctx, tx, actor, requirementID, enums.RequirementStatusConfirmed)
		if err != nil {
			return err
		}
		if err := s.requireSingleAccepted(ctx, tx, *req, *order); err != nil {
			return err
		}

		confirmedBy := actor.UserID
		if err := s.orders.WithTx(tx).UpdateOrder(ctx, order.ID, map[string]any{
			"status":       enums.OrderStatusConfirmed,
			"confirmed_at": now,
			"confirmed_by": confirmedBy,
		}); err != nil {
			return dependency(err, "confirm order")
		}
		if err := s.requirements.WithTx(tx).UpdateStatus(ctx, req.ID, enums.RequirementStatusConfirmed); err != nil {
			return dependency(err, "confirm requirement")
		}
		order.Status = enums.OrderStatusConfirmed
		order.ConfirmedAt = &now
		order.ConfirmedBy = &confirmedBy
		req.Status = enums.RequirementStatusConfirmed

		if err := s.emitOrderStatus(ctx, tx, actor, enums.EventOrderConfirmed, *req, *order); err != nil {
			return err
		}
		v := orders.NewView(*order)
		view = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// CancelOrder abandons the pending order of a selected requirement. The
// requirement closes, the order is kept as cancelled and the quote stays
// accepted for audit.
func (s *service) CancelOrder(ctx context.Context, actor types.Actor, requirementID uuid.UUID, reason string) (view *orders.View, err error) {
	started := time.Now()
	defer func() {
		s.observe(ctx, opCancelOrder, started, err, map[string]any{"requirement_id": requirementID.String()})
	}()

	now := s.calendar.Timestamp()
	reason = strings.TrimSpace(reason)
	if len(reason) > maxCancelReasonLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancel reason is too long").
			WithDetails(map[string]any{"max_length": maxCancelReasonLen})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		req, order, err := s.loadSelected(ctx, tx, actor, requirementID, enums.RequirementStatusClosed)
		if err != nil {
			return err
		}

		cancelledBy := actor.UserID
		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
			"cancelled_by": cancelledBy,
		}
		if reason != "" {
			updates["cancel_reason"] = reason
			order.CancelReason = &reason
		}
		if err := s.orders.WithTx(tx).UpdateOrder(ctx, order.ID, updates); err != nil {
			return dependency(err, "cancel order")
		}
		if err := s.requirements.WithTx(tx).Update(ctx, req.ID, map[string]any{
			"status":    enums.RequirementStatusClosed,
			"closed_at": now,
			"closed_by": cancelledBy,
		}); err != nil {
			return dependency(err, "close requirement")
		}
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		order.CancelledBy = &cancelledBy
		req.Status = enums.RequirementStatusClosed

		if err := s.emitOrderStatus(ctx, tx, actor, enums.EventOrderCancelled, *req, *order); err != nil {
			return err
		}
		v := orders.NewView(*order)
		view = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// loadSelected locks the requirement, checks that it may move to target and
// returns its pending order.
func (s *service) loadSelected(ctx context.Context, tx *gorm.DB, actor types.Actor, requirementID uuid.UUID, target enums.RequirementStatus) (*models.Requirement, *models.Order, error) {
	req, err := requirements.LoadForUpdate(ctx, s.requirements.WithTx(tx), requirementID)
	if err != nil {
		return nil, nil, err
	}
	if req.Status.IsTerminal() {
		return nil, nil, requirements.ErrAlreadyTerminal(req.ID, req.Status)
	}
	if req.Status != enums.RequirementStatusSelected {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "requirement has no accepted quote").
			WithReason(requirements.ReasonInvalidTransition).
			WithDetails(map[string]any{"requirement_id": req.ID, "status": req.Status, "to": target})
	}
	order, err := s.orders.WithTx(tx).FindByRequirement(ctx, req.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, orders.ErrNotFound()
		}
		return nil, nil, dependency(err, "load order")
	}
	if err := requireParty(actor, *order); err != nil {
		return nil, nil, err
	}
	if err := orders.CheckPending(*order); err != nil {
		return nil, nil, err
	}
	return req, order, nil
}

// requireSingleAccepted checks that exactly one quote is accepted and that it is the order's quote.
func (s *service) requireSingleAccepted(ctx context.Context, tx *gorm.DB, req models.Requirement, order models.Order) error {
	siblings, err := s.quotes.WithTx(tx).ListByRequirement(ctx, req.ID)
	if err != nil {
		return dependency(err, "list quotes")
	}
	var accepted []uuid.UUID
	for _, q := range siblings {
		if q.Status == enums.QuoteStatusAccepted {
			accepted = append(accepted, q.ID)
		}
	}
	if len(accepted) != 1 || accepted[0] != order.QuoteID {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "requirement must have exactly one accepted quote").
			WithReason(requirements.ReasonInvalidTransition).
			WithDetails(map[string]any{"requirement_id": req.ID, "accepted": len(accepted)})
	}
	return nil
}

func requireParty(actor types.Actor, order models.Order) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsBuyer() && order.BuyerID == actor.UserID:
		return nil
	case actor.IsMerchant() && order.MerchantID == actor.UserID:
		return nil
	default:
		return forbidden("only the buyer or merchant on the order may change it")
	}
}

func (s *service) emitOrderStatus(ctx context.Context, tx *gorm.DB, actor types.Actor, eventType enums.OutboxEventType, req models.Requirement, order models.Order) error {
	data := payloads.OrderStatusEvent{
		OrderID:           order.ID,
		RequirementID:     req.ID,
		QuoteID:           order.QuoteID,
		BuyerID:           order.BuyerID,
		MerchantID:        order.MerchantID,
		Quantity:          order.Quantity,
		Price:             order.Price,
		Status:            order.Status,
		RequirementStatus: req.Status,
	}
	if order.CancelReason != nil {
		data.Reason = *order.CancelReason
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(actor),
		Data:          data,
	}); err != nil {
		return dependency(err, "emit "+string(eventType))
	}
	return nil
}
