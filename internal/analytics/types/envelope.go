package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
)

// Envelope is a negotiation event as received from Pub/Sub.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	Version       int                       `json:"version"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	ActorID       *uuid.UUID                `json:"actor_id,omitempty"`
	ActorRole     enums.ActorRole           `json:"actor_role,omitempty"`
	Payload       json.RawMessage           `json:"payload"`
}

// FromMessage rebuilds an Envelope from a published message. Routing facts
// come from the attributes; the body wins for event id and occurrence time,
// with the event_id and created_at attributes as fallbacks.
func FromMessage(data []byte, attrs map[string]string) (Envelope, error) {
	stored, err := outbox.DecodeEnvelope(data)
	if err != nil {
		return Envelope{}, err
	}
	attr := func(key string) string { return strings.TrimSpace(attrs[key]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return Envelope{}, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return Envelope{}, fmt.Errorf("aggregate_type: %w", err)
	}
	env := Envelope{
		EventID:       firstNonEmpty(stored.EventID, attr("event_id")),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   attr("aggregate_id"),
		Version:       stored.Version,
		OccurredAt:    stored.OccurredAt,
		Payload:       stored.Data,
	}
	if env.AggregateID == "" {
		return Envelope{}, errors.New("aggregate_id missing")
	}
	if env.EventID == "" {
		return Envelope{}, errors.New("event_id missing")
	}
	if env.OccurredAt.IsZero() {
		if created, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			env.OccurredAt = created
		}
	}
	env.OccurredAt = env.OccurredAt.UTC()

	if actor := stored.Actor; actor != nil {
		if actor.UserID != uuid.Nil {
			id := actor.UserID
			env.ActorID = &id
		}
		env.ActorRole = actor.Role
	}
	return env, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
