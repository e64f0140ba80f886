package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/payloads"
)

const defaultExpiryBatchSize = 200

type expiredRequirements interface {
	ListExpiredOpen(ctx context.Context, scan requirements.ExpiredScan, limit int) ([]models.Requirement, error)
}

type onceEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

type RequirementExpiryJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Requirements expiredRequirements
	Outbox       onceEmitter
	Calendar     requirements.Calendar
	BatchSize    int
	// Lookback bounds how far past deadlines are rescanned. It should not
	// exceed the outbox retention, or purged notices would be emitted again.
	Lookback time.Duration
}

// NewRequirementExpiryJob emits one requirement_expired event per requirement
// whose deadline passed while it was still open. Stored statuses are left
// alone; expiry stays a read-time projection.
func NewRequirementExpiryJob(params RequirementExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Requirements == nil {
		return nil, fmt.Errorf("requirements repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &requirementExpiryJob{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Requirements,
		outbox:   params.Outbox,
		calendar: params.Calendar,
		batch:    batch,
		lookback: params.Lookback,
	}, nil
}

type requirementExpiryJob struct {
	logg     *logger.Logger
	db       txRunner
	repo     expiredRequirements
	outbox   onceEmitter
	calendar requirements.Calendar
	batch    int
	lookback time.Duration
}

func (j *requirementExpiryJob) Name() string { return "requirement-expiry-notice" }

func (j *requirementExpiryJob) Run(ctx context.Context) error {
	scan := requirements.ExpiredScan{Today: j.calendar.Today()}
	if j.lookback > 0 {
		scan.Since = scan.Today.Add(-j.lookback)
	}

	var (
		errs    error
		scanned int
		emitted int
	)
	for {
		rows, err := j.repo.ListExpiredOpen(ctx, scan, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list expired requirements: %w", err))
		}
		for _, row := range rows {
			scanned++
			created, err := j.notify(ctx, row)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("requirement %s: %w", row.ID, err))
				continue
			}
			if created {
				emitted++
			}
		}
		if len(rows) < j.batch {
			break
		}
		last := rows[len(rows)-1]
		scan.AfterDeadline, scan.AfterID = last.DeliveryDeadline, last.ID
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"today":   scan.Today.Format(time.DateOnly),
		"scanned": scanned,
		"emitted": emitted,
		"failed":  len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "requirement expiry notices complete")
	return errs
}

// notify runs one transaction per row so a failure never rolls back the
// notices already written for other requirements.
func (j *requirementExpiryJob) notify(ctx context.Context, row models.Requirement) (bool, error) {
	var created bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequirementExpired,
			AggregateType: enums.AggregateRequirement,
			AggregateID:   row.ID,
			Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem},
			Data: payloads.RequirementExpiredEvent{
				RequirementID:    row.ID,
				BuyerID:          row.BuyerID,
				DeliveryDeadline: row.DeliveryDeadline,
				StoredStatus:     row.Status,
			},
		})
		created = ok
		return err
	})
	return created, err
}
