package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/internal/analytics/types"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/registry"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by the router.
type Writer interface {
	InsertNegotiationEvent(ctx context.Context, row types.NegotiationEventRow) error
}

type decoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

// Router decodes negotiation envelopes and turns them into negotiation_events rows.
type Router struct {
	writer   Writer
	decoders decoder
	logg     *logger.Logger
}

// NewRouter builds a router over the v1 negotiation decoders.
func NewRouter(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{
		writer:   writer,
		decoders: registry.NegotiationDecoders(),
		logg:     logg,
	}, nil
}

// Handle implements worker.Handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	version := envelope.Version
	if version <= 0 {
		version = 1
	}

	decoded, err := r.decoders.Decode(envelope.EventType, version, envelope.Payload)
	if err != nil {
		if errors.Is(err, registry.ErrDecoderNotRegistered) {
			return fmt.Errorf("%w: %s@v%d", ErrUnsupportedEventType, envelope.EventType, version)
		}
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	row, err := BuildRow(envelope, decoded)
	if err != nil {
		return err
	}

	if err := r.writer.InsertNegotiationEvent(ctx, row); err != nil {
		return fmt.Errorf("insert %s row: %w", envelope.EventType, err)
	}
	r.logg.Debug(ctx, "negotiation event row written")
	return nil
}

// BuildRow flattens a decoded payload into the analytics row shape.
func BuildRow(envelope types.Envelope, payload any) (types.NegotiationEventRow, error) {
	row := types.NegotiationEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		OccurredAt:    envelope.OccurredAt.UTC(),
	}
	if envelope.ActorID != nil {
		row.ActorID = uuidPtr(*envelope.ActorID)
	}
	if envelope.ActorRole != "" {
		row.ActorRole = strPtr(string(envelope.ActorRole))
	}
	if len(envelope.Payload) > 0 {
		row.Payload = cbigquery.NullJSON{Valid: true, JSONVal: string(envelope.Payload)}
	}

	switch event := payload.(type) {
	case *payloads.RequirementCreatedEvent:
		row.RequirementID = uuidPtr(event.RequirementID)
		row.BuyerID = uuidPtr(event.BuyerID)
		row.Grade = strPtr(string(event.Grade))
		row.Origin = strPtr(string(event.Origin))
		row.Quantity = decPtr(event.RequiredQuantity)
		row.Price = decPtr(event.ExpectedPrice)
		row.RequirementStatus = strPtr(string(event.Status))
	case *payloads.RequirementPublishedEvent:
		row.RequirementID = uuidPtr(event.RequirementID)
		row.BuyerID = uuidPtr(event.BuyerID)
		row.RequirementStatus = strPtr(string(enums.RequirementStatusActive))
	case *payloads.RequirementSkippedEvent:
		row.RequirementID = uuidPtr(event.RequirementID)
		row.BuyerID = uuidPtr(event.BuyerID)
		row.RequirementStatus = strPtr(string(enums.RequirementStatusClosed))
		if row.ActorID == nil {
			row.ActorID = uuidPtr(event.SkippedBy)
			row.ActorRole = strPtr(string(event.SkippedByRole))
		}
	case *payloads.RequirementExpiredEvent:
		row.RequirementID = uuidPtr(event.RequirementID)
		row.BuyerID = uuidPtr(event.BuyerID)
		row.RequirementStatus = strPtr(string(enums.RequirementStatusClosed))
		row.Reason = strPtr("delivery_deadline_passed")
	case *payloads.QuoteSubmittedEvent:
		row.QuoteID = uuidPtr(event.QuoteID)
		row.RequirementID = uuidPtr(event.RequirementID)
		row.BuyerID = uuidPtr(event.BuyerID)
		row.MerchantID = uuidPtr(event.MerchantID)
		row.Quantity = decPtr(event.Quantity)
		row.Price = decPtr(event.Price)
		row.QuoteStatus = strPtr(string(enums.QuoteStatusNew))
		row.RequirementStatus = strPtr(string(event.RequirementStatus))
	case *payloads.QuoteDecisionEvent:
		row.QuoteID = uuidPtr(event.QuoteID)
		row.RequirementID = uuidPtr(event.RequirementID)
		row.BuyerID = uuidPtr(event.BuyerID)
		row.MerchantID = uuidPtr(event.MerchantID)
		row.QuoteStatus = strPtr(string(event.Status))
		row.RequirementStatus = strPtr(string(event.RequirementStatus))
		if event.OrderID != nil {
			row.OrderID = uuidPtr(*event.OrderID)
		}
	case *payloads.OrderStatusEvent:
		row.OrderID = uuidPtr(event.OrderID)
		row.QuoteID = uuidPtr(event.QuoteID)
		row.RequirementID = uuidPtr(event.RequirementID)
		row.BuyerID = uuidPtr(event.BuyerID)
		row.MerchantID = uuidPtr(event.MerchantID)
		row.Quantity = decPtr(event.Quantity)
		row.Price = decPtr(event.Price)
		row.OrderStatus = strPtr(string(event.Status))
		row.RequirementStatus = strPtr(string(event.RequirementStatus))
		if event.Reason != "" {
			row.Reason = strPtr(event.Reason)
		}
	default:
		return types.NegotiationEventRow{}, fmt.Errorf("%w: payload %T", ErrUnsupportedEventType, payload)
	}
	return row, nil
}

func strPtr(value string) *string {
	return &value
}

func uuidPtr(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	return strPtr(id.String())
}

func decPtr(value decimal.Decimal) *decimal.Decimal {
	return &value
}
