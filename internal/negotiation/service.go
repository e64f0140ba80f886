// Package negotiation owns every transition that touches a requirement and its
// quotes together. Each operation runs in one transaction holding the
// requirement row lock, so operations on the same requirement are serialised.
package negotiation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/internal/orders"
	"github.com/angelmondragon/sourcing-backend/internal/quotes"
	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/metrics"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

const (
	opSubmitQuote     = "submit_quote"
	opAcceptQuote     = "accept_quote"
	opRejectQuote     = "reject_quote"
	opSkipRequirement = "skip_requirement"
	opConfirmOrder    = "confirm_order"
	opCancelOrder     = "cancel_order"
	opMarkViewed      = "mark_viewed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the negotiation coordinator.
type Service interface {
	SubmitQuote(ctx context.Context, actor types.Actor, input quotes.SubmitInput) (*quotes.View, error)
	AcceptQuote(ctx context.Context, actor types.Actor, quoteID uuid.UUID) (*AcceptResult, error)
	RejectQuote(ctx context.Context, actor types.Actor, quoteID uuid.UUID) (*quotes.View, error)
	SkipRequirement(ctx context.Context, actor types.Actor, requirementID uuid.UUID) (*requirements.Summary, error)
	ConfirmOrder(ctx context.Context, actor types.Actor, requirementID uuid.UUID) (*orders.View, error)
	CancelOrder(ctx context.Context, actor types.Actor, requirementID uuid.UUID, reason string) (*orders.View, error)
	// MarkViewed moves an active requirement to viewed on a merchant's first
	// detail read. It reports whether the row changed.
	MarkViewed(ctx context.Context, actor types.Actor, requirementID uuid.UUID) (bool, error)
}

// AcceptResult carries the winning quote and the order derived from it.
type AcceptResult struct {
	Quote       quotes.View    `json:"quote"`
	Order       orders.View    `json:"order"`
	Requirement RequirementRef `json:"requirement"`
}

// RequirementRef is the authoritative requirement status after a mutation.
type RequirementRef struct {
	ID     uuid.UUID               `json:"id"`
	Status enums.RequirementStatus `json:"status"`
}

// Deps groups the coordinator collaborators.
type Deps struct {
	Requirements requirements.Repository
	Quotes       quotes.Repository
	Orders       orders.Repository
	Tx           txRunner
	Outbox       outboxPublisher
	Calendar     requirements.Calendar
	Metrics      *metrics.NegotiationMetrics
	Logger       *logger.Logger
}

type service struct {
	requirements requirements.Repository
	quotes       quotes.Repository
	orders       orders.Repository
	tx           txRunner
	outbox       outboxPublisher
	calendar     requirements.Calendar
	metrics      *metrics.NegotiationMetrics
	logg         *logger.Logger
}

// NewService builds the coordinator with the required dependencies.
func NewService(deps Deps) (Service, error) {
	if deps.Requirements == nil {
		return nil, fmt.Errorf("requirements repository required")
	}
	if deps.Quotes == nil {
		return nil, fmt.Errorf("quotes repository required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		requirements: deps.Requirements,
		quotes:       deps.Quotes,
		orders:       deps.Orders,
		tx:           deps.Tx,
		outbox:       deps.Outbox,
		calendar:     deps.Calendar,
		metrics:      deps.Metrics,
		logg:         deps.Logger,
	}, nil
}

// observe records the outcome of op and logs rejected requests at warn.
func (s *service) observe(ctx context.Context, op string, started time.Time, err error, fields map[string]any) {
	s.metrics.Observe(op, started, err)
	if s.logg == nil {
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["operation"] = op
	fields["outcome"] = metrics.Outcome(err)
	ctx = s.logg.WithFields(ctx, fields)
	switch {
	case err == nil:
	case pkgerrors.As(err) == nil, pkgerrors.IsCode(err, pkgerrors.CodeDependency), pkgerrors.IsCode(err, pkgerrors.CodeInternal):
		s.logg.Error(ctx, "negotiation operation failed", err)
		return
	default:
		s.logg.Warn(ctx, "negotiation operation rejected")
		return
	}
	s.logg.Info(ctx, "negotiation operation applied")
}

func actorRef(actor types.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}
