package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/metrics"
)

const defaultInterval = time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locker   Locker
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service executes registered cron jobs on a fixed cadence.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locker   Locker
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locker:   params.Locker,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logg.Info(s.logg.WithField(ctx, "interval", s.interval.String()), "cron loop scheduled")
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// RunOnce runs a single cycle over the named jobs, or all of them, and
// returns the aggregated job errors. Leases still apply.
func (s *Service) RunOnce(ctx context.Context, names ...string) error {
	jobs, err := s.registry.Select(names...)
	if err != nil {
		return err
	}
	return s.runJobs(ctx, jobs)
}

func (s *Service) runCycle(ctx context.Context) error {
	return s.runJobs(ctx, s.registry.Jobs())
}

func (s *Service) runJobs(ctx context.Context, jobs []Job) error {
	s.logg.Info(s.logg.WithField(ctx, "jobs", len(jobs)), "scheduled run starting")
	var errs error
	skipped := 0
	for _, job := range jobs {
		ran, err := s.runLeased(ctx, job)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
		if !ran && err == nil {
			skipped++
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"failed_jobs":  len(multierr.Errors(errs)),
		"skipped_jobs": skipped,
	}), "scheduled run complete")
	return errs
}

// runLeased reports whether the job ran on this replica.
func (s *Service) runLeased(ctx context.Context, job Job) (bool, error) {
	lease, err := s.locker.TryLock(ctx, job.Name())
	if err != nil {
		s.metrics.RecordRun(job.Name(), time.Now(), 0, err)
		return false, err
	}
	if lease == nil {
		s.logg.Info(s.logg.WithField(ctx, "job", job.Name()), "job held by another replica")
		s.metrics.RecordSkipped(job.Name())
		return false, nil
	}
	defer func() {
		if relErr := lease.Unlock(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lease", relErr)
		}
	}()
	return true, s.runJob(ctx, job)
}

// runJob never stops the cycle; the error is returned for aggregation only.
func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	finished := time.Now()
	s.metrics.RecordRun(job.Name(), finished, finished.Sub(start), err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", finished.Sub(start).Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	return nil
}
