package requirements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/internal/pricing"
	"github.com/angelmondragon/sourcing-backend/internal/quantity"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

const ReasonDeadlinePassed pkgerrors.Reason = "DEADLINE_PASSED"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service covers the buyer-owned side of a requirement. Cross-entity
// transitions live in the negotiation coordinator.
type Service interface {
	Create(ctx context.Context, actor types.Actor, input CreateInput) (*Summary, error)
	Update(ctx context.Context, actor types.Actor, id uuid.UUID, input UpdateInput) (*Summary, error)
	Publish(ctx context.Context, actor types.Actor, id uuid.UUID) (*Summary, error)
	Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*Summary, error)
	Delete(ctx context.Context, actor types.Actor, id uuid.UUID) error
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	calendar Calendar
}

// NewService builds the requirement service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, calendar Calendar) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("requirements repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, calendar: calendar}, nil
}

func (s *service) Create(ctx context.Context, actor types.Actor, input CreateInput) (*Summary, error) {
	if err := requireBuyer(actor); err != nil {
		return nil, err
	}
	required, minimum, err := parseQuantities(input.RequiredQuantity, input.MinimumQuantity)
	if err != nil {
		return nil, err
	}
	if err := validateTerms(input.Grade, input.Origin, input.ExpectedPrice); err != nil {
		return nil, err
	}
	today := s.calendar.Today()
	if err := validateDeadline(input.DeliveryDeadline, today); err != nil {
		return nil, err
	}

	req := &models.Requirement{
		BuyerID:          actor.UserID,
		Grade:            input.Grade,
		Origin:           input.Origin,
		RequiredQuantity: required,
		MinimumQuantity:  minimum,
		ExpectedPrice:    input.ExpectedPrice,
		AllowLowerBid:    input.AllowLowerBid,
		DeliveryLocation: strings.TrimSpace(input.DeliveryLocation),
		DeliveryCity:     strings.TrimSpace(input.DeliveryCity),
		DeliveryCountry:  strings.TrimSpace(input.DeliveryCountry),
		DeliveryDeadline: civilDate(input.DeliveryDeadline),
		Specifications:   trimOptional(input.Specifications),
		IsDraft:          input.IsDraft,
		Status:           InitialStatus(input.IsDraft),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create requirement")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequirementCreated,
			AggregateType: enums.AggregateRequirement,
			AggregateID:   req.ID,
			Actor:         actorRef(actor),
			Data: payloads.RequirementCreatedEvent{
				RequirementID:    req.ID,
				BuyerID:          req.BuyerID,
				Grade:            req.Grade,
				Origin:           req.Origin,
				RequiredQuantity: req.RequiredQuantity,
				ExpectedPrice:    req.ExpectedPrice,
				DeliveryDeadline: req.DeliveryDeadline,
				Status:           req.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	summary := NewSummary(*req, today)
	return &summary, nil
}

func (s *service) Update(ctx context.Context, actor types.Actor, id uuid.UUID, input UpdateInput) (*Summary, error) {
	if err := requireBuyer(actor); err != nil {
		return nil, err
	}
	today := s.calendar.Today()
	var updated *models.Requirement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := LoadForUpdate(ctx, repo, id)
		if err != nil {
			return err
		}
		if req.BuyerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "requirement does not belong to buyer")
		}
		if req.Status.IsTerminal() {
			return ErrAlreadyTerminal(req.ID, req.Status)
		}
		if !Editable(req.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "requirement can no longer be edited").
				WithReason(ReasonNotEditable).
				WithDetails(map[string]any{"requirement_id": req.ID, "status": req.Status})
		}

		updates, err := applyUpdate(req, input, today)
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, req.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update requirement")
		}
		updated, err = repo.FindByID(ctx, req.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload requirement")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	summary := NewSummary(*updated, today)
	return &summary, nil
}

func (s *service) Publish(ctx context.Context, actor types.Actor, id uuid.UUID) (*Summary, error) {
	if err := requireBuyer(actor); err != nil {
		return nil, err
	}
	today := s.calendar.Today()
	var published *models.Requirement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := LoadForUpdate(ctx, repo, id)
		if err != nil {
			return err
		}
		if req.BuyerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "requirement does not belong to buyer")
		}
		if err := CheckTransition(req, enums.RequirementStatusActive); err != nil {
			return err
		}
		if err := validateDeadline(req.DeliveryDeadline, today); err != nil {
			return err
		}
		if err := repo.Update(ctx, req.ID, map[string]any{
			"status":   enums.RequirementStatusActive,
			"is_draft": false,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish requirement")
		}
		req.Status = enums.RequirementStatusActive
		req.IsDraft = false
		published = req
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequirementPublished,
			AggregateType: enums.AggregateRequirement,
			AggregateID:   req.ID,
			Actor:         actorRef(actor),
			Data: payloads.RequirementPublishedEvent{
				RequirementID: req.ID,
				BuyerID:       req.BuyerID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	summary := NewSummary(*published, today)
	return &summary, nil
}

func (s *service) Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*Summary, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load requirement")
	}
	if err := CanView(actor, *req); err != nil {
		return nil, err
	}
	summary := NewSummary(*req, s.calendar.Today())
	return &summary, nil
}

func (s *service) Delete(ctx context.Context, actor types.Actor, id uuid.UUID) error {
	if !actor.IsBuyer() && !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the owning buyer may delete a requirement")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := LoadForUpdate(ctx, repo, id)
		if err != nil {
			return err
		}
		if actor.IsBuyer() && req.BuyerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "requirement does not belong to buyer")
		}
		if req.Status == enums.RequirementStatusSelected || req.Status == enums.RequirementStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "requirement has an accepted quote").
				WithReason(ReasonNotEditable).
				WithDetails(map[string]any{"requirement_id": req.ID, "status": req.Status})
		}
		if err := repo.Delete(ctx, req.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete requirement")
		}
		return nil
	})
}

// CanView applies read visibility: drafts are private to their buyer, and
// buyers only see their own requirements.
func CanView(actor types.Actor, req models.Requirement) error {
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
			return errNotFound()
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot view requirements")
	}
}

// LoadForUpdate locks and returns the requirement, mapping a missing row to NOT_FOUND.
func LoadForUpdate(ctx context.Context, repo Repository, id uuid.UUID) (*models.Requirement, error) {
	req, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load requirement")
	}
	return req, nil
}

func applyUpdate(req *models.Requirement, input UpdateInput, today time.Time) (map[string]any, error) {
	updates := map[string]any{}

	grade, origin, price := req.Grade, req.Origin, req.ExpectedPrice
	if input.Grade != nil {
		grade = *input.Grade
		updates["grade"] = grade
	}
	if input.Origin != nil {
		origin = *input.Origin
		updates["origin"] = origin
	}
	if input.ExpectedPrice != nil {
		price = *input.ExpectedPrice
		updates["expected_price"] = price
	}
	if input.Grade != nil || input.Origin != nil || input.ExpectedPrice != nil {
		if err := validateTerms(grade, origin, price); err != nil {
			return nil, err
		}
	}

	if input.RequiredQuantity != nil || input.MinimumQuantity != nil {
		requiredRaw := req.RequiredQuantity.String()
		minimumRaw := req.MinimumQuantity.String()
		if input.RequiredQuantity != nil {
			requiredRaw = *input.RequiredQuantity
		}
		if input.MinimumQuantity != nil {
			minimumRaw = *input.MinimumQuantity
		}
		required, minimum, err := parseQuantities(requiredRaw, minimumRaw)
		if err != nil {
			return nil, err
		}
		updates["required_quantity"] = required
		updates["minimum_quantity"] = minimum
	}

	if input.AllowLowerBid != nil {
		updates["allow_lower_bid"] = *input.AllowLowerBid
	}
	if input.DeliveryLocation != nil {
		updates["delivery_location"] = strings.TrimSpace(*input.DeliveryLocation)
	}
	if input.DeliveryCity != nil {
		updates["delivery_city"] = strings.TrimSpace(*input.DeliveryCity)
	}
	if input.DeliveryCountry != nil {
		updates["delivery_country"] = strings.TrimSpace(*input.DeliveryCountry)
	}
	if input.DeliveryDeadline != nil {
		if err := validateDeadline(*input.DeliveryDeadline, today); err != nil {
			return nil, err
		}
		updates["delivery_deadline"] = civilDate(*input.DeliveryDeadline)
	}
	if input.Specifications != nil {
		updates["specifications"] = trimOptional(input.Specifications)
	}
	return updates, nil
}

func parseQuantities(requiredRaw, minimumRaw string) (decimal.Decimal, decimal.Decimal, error) {
	required, err := quantity.Normalize(requiredRaw)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	minimum, err := quantity.Normalize(minimumRaw)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := quantity.ValidateBounds(minimum, required); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return required, minimum, nil
}

func validateTerms(grade enums.Grade, origin enums.Origin, price decimal.Decimal) error {
	if !grade.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown grade").
			WithDetails(map[string]any{"grade": grade})
	}
	if !origin.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown origin").
			WithDetails(map[string]any{"origin": origin})
	}
	return pricing.ValidatePrice(price, grade, origin)
}

func validateDeadline(deadline, today time.Time) error {
	if deadline.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery deadline required")
	}
	if IsExpired(deadline, today) {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery deadline is in the past").
			WithReason(ReasonDeadlinePassed).
			WithDetails(map[string]any{
				"delivery_deadline": deadline.Format(DateLayout),
				"today":             today.Format(DateLayout),
			})
	}
	return nil
}

func requireBuyer(actor types.Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !actor.IsBuyer() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "buyer role required")
	}
	return nil
}

func actorRef(actor types.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
