package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/sourcing-backend/pkg/config"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/payloads"
)

// EventDescriptor binds an event type to its aggregate, topic and payload shape.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	newPayload func() any
}

// NewPayload returns a pointer to an empty payload struct for this event.
func (d EventDescriptor) NewPayload() any { return d.newPayload() }

type catalogEntry struct {
	event     enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	notify    bool
	payload   func() any
}

func payloadOf[T any]() func() any {
	return func() any { return new(T) }
}

// notify routes the event to the notification topic instead of the
// negotiation topic.
var catalog = []catalogEntry{
	{enums.EventRequirementCreated, enums.AggregateRequirement, false, payloadOf[payloads.RequirementCreatedEvent]()},
	{enums.EventRequirementPublished, enums.AggregateRequirement, false, payloadOf[payloads.RequirementPublishedEvent]()},
	{enums.EventRequirementSkipped, enums.AggregateRequirement, false, payloadOf[payloads.RequirementSkippedEvent]()},
	{enums.EventRequirementExpired, enums.AggregateRequirement, true, payloadOf[payloads.RequirementExpiredEvent]()},
	{enums.EventQuoteSubmitted, enums.AggregateQuote, false, payloadOf[payloads.QuoteSubmittedEvent]()},
	{enums.EventQuoteAccepted, enums.AggregateQuote, false, payloadOf[payloads.QuoteDecisionEvent]()},
	{enums.EventQuoteRejected, enums.AggregateQuote, false, payloadOf[payloads.QuoteDecisionEvent]()},
	{enums.EventOrderConfirmed, enums.AggregateOrder, false, payloadOf[payloads.OrderStatusEvent]()},
	{enums.EventOrderCancelled, enums.AggregateOrder, false, payloadOf[payloads.OrderStatusEvent]()},
}

// Descriptors expands the event catalog against concrete topic names.
func Descriptors(negotiationTopic, notificationTopic string) []EventDescriptor {
	out := make([]EventDescriptor, 0, len(catalog))
	for _, e := range catalog {
		topic := negotiationTopic
		if e.notify {
			topic = notificationTopic
		}
		out = append(out, EventDescriptor{
			EventType:     e.event,
			AggregateType: e.aggregate,
			Topic:         topic,
			newPayload:    e.payload,
		})
	}
	return out
}

// NonRetryableError marks a row that can never be delivered as stored.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// ResolvedEvent is an outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry resolves outbox rows to their topic and typed payload.
type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry falls back to the negotiation topic when no notification
// topic is configured.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.NegotiationTopic == "" {
		return nil, errors.New("negotiation topic is required")
	}
	notificationTopic := cfg.NotificationTopic
	if notificationTopic == "" {
		notificationTopic = cfg.NegotiationTopic
	}
	descs := Descriptors(cfg.NegotiationTopic, notificationTopic)
	reg := &EventRegistry{byType: make(map[enums.OutboxEventType]EventDescriptor, len(descs))}
	for _, d := range descs {
		reg.byType[d.EventType] = d
	}
	return reg, nil
}

// Topics returns the distinct topics in sorted order.
func (r *EventRegistry) Topics() []string {
	var out []string
	for _, d := range r.byType {
		if !slices.Contains(out, d.Topic) {
			out = append(out, d.Topic)
		}
	}
	slices.Sort(out)
	return out
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is a NonRetryableError: retrying the same bytes cannot help.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.byType[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("aggregate mismatch: %s carries %s, got %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("%s: missing aggregate_id", event.EventType)
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NonRetryableError{Err: err}
	}
	if !envelope.HasData() {
		return nil, permanent("%s: envelope has no data", event.EventType)
	}
	payload := desc.NewPayload()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
