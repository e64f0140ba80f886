// Package idempotency records which outbox events a consumer has already
// applied, so Pub/Sub redeliveries do not double count.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	markerInProgress = "in_progress"
	markerDone       = "done"

	// DefaultClaimTTL bounds how long a crashed consumer can hold an event.
	DefaultClaimTTL = 5 * time.Minute
)

// Status is the outcome of a claim attempt.
type Status int

const (
	// StatusClaimed means the caller owns the event and must Complete or Release it.
	StatusClaimed Status = iota + 1
	// StatusInProgress means another consumer holds a live claim.
	StatusInProgress
	// StatusDone means the event was already applied.
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusClaimed:
		return "claimed"
	case StatusInProgress:
		return "in_progress"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// Store is the Redis surface the ledger needs; *redis.Client from pkg/redis satisfies it.
type Store interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
}

// Ledger is a two-phase processed-event record. Claim takes a short lease,
// Complete turns it into a long-lived "done" marker and Release drops it so a
// redelivery can retry.
type Ledger struct {
	store    Store
	ttl      time.Duration
	claimTTL time.Duration
}

// NewLedger keeps done markers for ttl. A zero claimTTL uses DefaultClaimTTL.
func NewLedger(store Store, ttl, claimTTL time.Duration) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	if claimTTL <= 0 {
		claimTTL = DefaultClaimTTL
	}
	if claimTTL > ttl {
		claimTTL = ttl
	}
	return &Ledger{store: store, ttl: ttl, claimTTL: claimTTL}, nil
}

func (l *Ledger) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (Status, error) {
	key, err := l.key(consumer, eventID)
	if err != nil {
		return 0, err
	}
	claimed, err := l.store.SetNX(ctx, key, markerInProgress, l.claimTTL)
	if err != nil {
		return 0, fmt.Errorf("claim %s: %w", key, err)
	}
	if claimed {
		return StatusClaimed, nil
	}

	current, err := l.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// lease lapsed between the two calls; let the redelivery claim it
		return StatusInProgress, nil
	case err != nil:
		return 0, fmt.Errorf("read claim %s: %w", key, err)
	case current == markerDone:
		return StatusDone, nil
	default:
		return StatusInProgress, nil
	}
}

func (l *Ledger) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := l.key(consumer, eventID)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, key, markerDone, l.ttl)
}

func (l *Ledger) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := l.key(consumer, eventID)
	if err != nil {
		return err
	}
	return l.store.Del(ctx, key)
}

func (l *Ledger) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return l.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
