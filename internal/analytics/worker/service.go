// Package worker drains the analytics subscription into BigQuery.
package worker

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/sourcing-backend/internal/analytics/router"
	"github.com/angelmondragon/sourcing-backend/internal/analytics/types"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/metrics"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/idempotency"
)

// ConsumerName scopes ledger keys and metrics to this consumer.
const ConsumerName = "analytics"

// Handler writes one decoded envelope.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type eventLedger interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.Status, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// outcome is how a delivery was settled. Only busy and failed are redelivered.
type outcome string

const (
	outcomeWritten     outcome = "written"
	outcomeDuplicate   outcome = "duplicate"
	outcomeBusy        outcome = "busy"
	outcomeMalformed   outcome = "malformed"
	outcomeUnsupported outcome = "unsupported"
	outcomeFailed      outcome = "failed"
)

func (o outcome) ack() bool {
	return o != outcomeBusy && o != outcomeFailed
}

type Service struct {
	subscription receiver
	handler      Handler
	ledger       eventLedger
	logg         *logger.Logger
	metrics      *metrics.ConsumerMetrics
}

// NewService accepts a nil metrics sink.
func NewService(subscription receiver, handler Handler, ledger eventLedger, logg *logger.Logger, m *metrics.ConsumerMetrics) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case ledger == nil:
		return nil, errors.New("idempotency ledger is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, ledger: ledger, logg: logg, metrics: m}, nil
}

// Run blocks in Receive until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.process(ctx, msg).ack() {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) outcome {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := types.FromMessage(msg.Data, msg.Attributes)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "analytics.envelope_invalid")
		return s.settle(outcomeMalformed, "")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
		"occurred_at":    envelope.OccurredAt.Format(time.RFC3339Nano),
	})
	eventType := string(envelope.EventType)

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(ctx, "analytics.event_id_invalid")
		return s.settle(outcomeMalformed, eventType)
	}

	claim, err := s.ledger.Claim(ctx, ConsumerName, eventID)
	switch {
	case err != nil:
		s.logg.Error(ctx, "analytics.claim_failed", err)
		return s.settle(outcomeFailed, eventType)
	case claim == idempotency.StatusDone:
		s.logg.Debug(ctx, "analytics.duplicate")
		return s.settle(outcomeDuplicate, eventType)
	case claim == idempotency.StatusInProgress:
		s.logg.Debug(ctx, "analytics.claimed_elsewhere")
		return s.settle(outcomeBusy, eventType)
	}

	result := outcomeWritten
	if err := s.handler.Handle(ctx, envelope); err != nil {
		if !errors.Is(err, router.ErrUnsupportedEventType) {
			s.logg.Error(ctx, "analytics.write_failed", err)
			if relErr := s.ledger.Release(ctx, ConsumerName, eventID); relErr != nil {
				s.logg.Error(ctx, "analytics.release_failed", relErr)
			}
			return s.settle(outcomeFailed, eventType)
		}
		s.logg.Warn(ctx, "analytics.unsupported_event")
		result = outcomeUnsupported
	}

	if err := s.ledger.Complete(ctx, ConsumerName, eventID); err != nil {
		// the row is written; a redelivery is deduplicated by insertID
		s.logg.Error(ctx, "analytics.complete_failed", err)
	}
	return s.settle(result, eventType)
}

func (s *Service) settle(o outcome, eventType string) outcome {
	s.metrics.Observe(string(o), eventType)
	return o
}
