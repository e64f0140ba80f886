package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/registry"
)

// inflight is a row whose message has been handed to the publisher and
// whose result has not been read yet.
type inflight struct {
	event  models.OutboxEvent
	fields map[string]any
	result publishResult
}

// processBatch reports whether any row was handled so Run can drain a backlog
// without sleeping between batches. All messages in the batch are handed to
// the publisher before any result is awaited, letting the client batch them.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		events, err := repo.FetchUnpublished(ctx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch unpublished: %w", err)
		}
		processed = len(events) > 0

		publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()

		pending := make([]inflight, 0, len(events))
		for _, event := range events {
			item, err := s.dispatch(publishCtx, tx, event)
			if err != nil {
				return err
			}
			if item != nil {
				pending = append(pending, *item)
			}
		}
		for _, item := range pending {
			if err := s.settle(publishCtx, tx, repo, item); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

// dispatch resolves the row and starts its publish. Rows that cannot be
// routed go straight to the DLQ and yield no inflight entry.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (*inflight, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return nil, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonUnroutable, err, s.eventFields(event, outbox.PayloadEnvelope{}, ""))
	}
	topic := resolved.Descriptor.Topic
	fields := s.eventFields(event, resolved.Envelope, topic)

	pub := s.publisherFor(topic)
	if pub == nil {
		cause := fmt.Errorf("publisher not configured for topic %s", topic)
		return nil, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, cause, fields)
	}
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved.Envelope.EventID),
	})
	if result == nil {
		return nil, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, errNilResult, fields)
	}
	return &inflight{event: event, fields: fields, result: result}, nil
}

func messageAttributes(event models.OutboxEvent, eventID string) map[string]string {
	return map[string]string{
		"event_id":       eventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// settle waits for one publish result and records the outcome on the row.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, repo *outbox.Repository, item inflight) error {
	event := item.event
	_, err := item.result.Get(ctx)
	if err == nil {
		if err := repo.MarkPublished(ctx, event.ID, s.now().UTC()); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(s.logg.WithFields(ctx, item.fields), "outbox event published")
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, item.fields)
	}

	event.AttemptCount++
	item.fields["attempt_count"] = event.AttemptCount
	if event.AttemptCount >= s.maxAttempts {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err), item.fields)
	}

	s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, item.fields), "error", err.Error()), "outbox publish failed")
	s.metrics.IncFailed(string(event.EventType))
	if markErr := repo.MarkFailed(ctx, event.ID, err); markErr != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, fields), "error", cause.Error()), "outbox event will not be retried")

	if err := s.dlq.MoveTx(tx, event, reason, cause); err != nil {
		return fmt.Errorf("move %s to dlq: %w", event.ID, err)
	}
	s.metrics.IncDeadLettered(string(event.EventType), string(reason))
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
