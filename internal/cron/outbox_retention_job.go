package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/sourcing-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
)

type publishedPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	Outbox       publishedPurger
	DLQ          deadLetterPurger
	Retention    time.Duration
	DLQRetention time.Duration
}

// NewOutboxRetentionJob prunes delivered outbox rows and aged dead letters.
// Rows still waiting for delivery are left alone. A nil DLQ skips the second
// sweep.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Outbox == nil:
		return nil, errors.New("outbox repository required")
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		outbox:       params.Outbox,
		dlq:          params.DLQ,
		retention:    orDefault(params.Retention, defaultOutboxRetention),
		dlqRetention: orDefault(params.DLQRetention, defaultDLQRetention),
		now:          time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	outbox       publishedPurger
	dlq          deadLetterPurger
	retention    time.Duration
	dlqRetention time.Duration
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run attempts both sweeps even when the first fails.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	fields := map[string]any{}

	var errs error
	published, err := j.outbox.DeletePublishedBefore(ctx, now.Add(-j.retention))
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("purge published: %w", err))
	}
	fields["published_deleted"] = published

	if j.dlq != nil {
		dead, err := j.dlq.DeleteFailedBefore(ctx, now.Add(-j.dlqRetention))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purge dlq: %w", err))
		}
		fields["dlq_deleted"] = dead
	}
	if errs != nil {
		return errs
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention sweep complete")
	return nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
