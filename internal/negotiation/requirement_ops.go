package negotiation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

// SkipRequirement closes a requirement without touching its quotes. The
// owning buyer, any merchant opting out, or an admin may skip.
func (s *service) SkipRequirement(ctx context.Context, actor types.Actor, requirementID uuid.UUID) (summary *requirements.Summary, err error) {
	started := time.Now()
	defer func() {
		s.observe(ctx, opSkipRequirement, started, err, map[string]any{"requirement_id": requirementID.String()})
	}()

	today := s.calendar.Today()
	now := s.calendar.Timestamp()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reqRepo := s.requirements.WithTx(tx)
		req, err := requirements.LoadForUpdate(ctx, reqRepo, requirementID)
		if err != nil {
			return err
		}
		if err := canSkip(actor, *req); err != nil {
			return err
		}

		effective := requirements.EffectiveStatus(*req, today)
		if effective.IsTerminal() {
			return requirements.ErrAlreadyTerminal(req.ID, effective)
		}
		if req.Status == enums.RequirementStatusSelected {
			// an accepted quote is unwound through order cancellation
			return requirements.ErrNotOpen(req.ID, req.Status, false)
		}
		if err := requirements.CheckTransition(req, enums.RequirementStatusClosed); err != nil {
			return err
		}

		previous := req.Status
		if err := reqRepo.Update(ctx, req.ID, map[string]any{
			"status":    enums.RequirementStatusClosed,
			"closed_at": now,
			"closed_by": actor.UserID,
		}); err != nil {
			return dependency(err, "close requirement")
		}
		req.Status = enums.RequirementStatusClosed
		req.ClosedAt = &now
		closedBy := actor.UserID
		req.ClosedBy = &closedBy

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequirementSkipped,
			AggregateType: enums.AggregateRequirement,
			AggregateID:   req.ID,
			Actor:         actorRef(actor),
			Data: payloads.RequirementSkippedEvent{
				RequirementID:  req.ID,
				BuyerID:        req.BuyerID,
				SkippedBy:      actor.UserID,
				SkippedByRole:  actor.Role,
				PreviousStatus: previous,
			},
		}); err != nil {
			return dependency(err, "emit requirement skipped")
		}
		out := requirements.NewSummary(*req, today)
		summary = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func canSkip(actor types.Actor, req models.Requirement) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsBuyer():
		if req.BuyerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "requirement does not belong to buyer")
		}
		return nil
	case actor.IsMerchant():
		if req.Status == enums.RequirementStatusDraft {
			return pkgerrors.New(pkgerrors.CodeNotFound, "requirement not found")
		}
		return nil
	default:
		return forbidden("role cannot skip requirements")
	}
}

func (s *service) MarkViewed(ctx context.Context, actor types.Actor, requirementID uuid.UUID) (changed bool, err error) {
	started := time.Now()
	defer func() {
		if changed || err != nil {
			s.observe(ctx, opMarkViewed, started, err, map[string]any{"requirement_id": requirementID.String()})
		}
	}()

	if !actor.IsMerchant() {
		return false, nil
	}
	today := s.calendar.Today()
	now := s.calendar.Timestamp()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reqRepo := s.requirements.WithTx(tx)
		req, err := requirements.LoadForUpdate(ctx, reqRepo, requirementID)
		if err != nil {
			return err
		}
		if req.Status != enums.RequirementStatusActive || requirements.Expired(*req, today) {
			return nil
		}
		if err := reqRepo.Update(ctx, req.ID, map[string]any{
			"status":          enums.RequirementStatusViewed,
			"first_viewed_at": now,
			"first_viewed_by": actor.UserID,
		}); err != nil {
			return dependency(err, "mark requirement viewed")
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
