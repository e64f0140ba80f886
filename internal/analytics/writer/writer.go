// Package writer streams analytics rows into BigQuery.
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/sourcing-backend/internal/analytics/types"
	"github.com/angelmondragon/sourcing-backend/pkg/config"
)

const (
	defaultAttempts   = 3
	defaultBackoff    = 250 * time.Millisecond
	defaultMaxBackoff = 2 * time.Second
	jitterPercent     = 10
)

// Inserter is the subset of the BigQuery client the writer needs.
type Inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter inserts one row per call so the Pub/Sub ack can wait for a
// durable write.
type BigQueryWriter struct {
	client     Inserter
	table      string
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
}

func New(client Inserter, cfg config.BigQueryConfig) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.NegotiationsTable)
	if table == "" {
		return nil, errors.New("negotiations table is required")
	}
	w := &BigQueryWriter{
		client:     client,
		table:      table,
		attempts:   positive(cfg.InsertAttempts, defaultAttempts),
		backoff:    positive(cfg.InsertBackoff, defaultBackoff),
		maxBackoff: positive(cfg.InsertMaxBackoff, defaultMaxBackoff),
	}
	w.maxBackoff = max(w.maxBackoff, w.backoff)
	return w, nil
}

func positive[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

// InsertNegotiationEvent retries transient failures with capped, jittered
// exponential backoff. A canceled ctx wins over the last insert error.
func (w *BigQueryWriter) InsertNegotiationEvent(ctx context.Context, row types.NegotiationEventRow) error {
	rows := []any{&row}
	err := retry.Do(ctx, w.policy(), func(ctx context.Context) error {
		err := w.client.InsertRows(ctx, w.table, rows)
		if err != nil && Retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return fmt.Errorf("insert into %s: %w", w.table, err)
}

func (w *BigQueryWriter) policy() retry.Backoff {
	b := retry.NewExponential(w.backoff)
	b = retry.WithJitterPercent(jitterPercent, b)
	b = retry.WithCappedDuration(w.maxBackoff, b)
	return retry.WithMaxRetries(uint64(w.attempts-1), b)
}
