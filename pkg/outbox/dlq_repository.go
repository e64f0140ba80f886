package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// dead-letter messages are clipped to this many bytes
const maxDLQErrorLen = 1024

// DLQRepository stores outbox rows that exhausted delivery.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// MoveTx copies event into outbox_dlq and deletes the live row. A second move
// of the same event id keeps the first dead-letter entry.
func (r *DLQRepository) MoveTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	if tx == nil {
		return errTxRequired
	}
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  clipCause(cause),
		AttemptCount:  event.AttemptCount,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&entry).Error
	if err != nil {
		return err
	}
	return tx.Delete(&models.OutboxEvent{}, "id = ?", event.ID).Error
}

// FindByEventID returns gorm.ErrRecordNotFound when the event never failed.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).First(&entry, "event_id = ?", eventID).Error
	return entry, err
}

// DeleteFailedBefore drops dead letters recorded before cutoff.
func (r *DLQRepository) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.OutboxDLQ{}, "failed_at < ?", cutoff)
	return res.RowsAffected, res.Error
}

func clipCause(cause error) *string {
	if cause == nil {
		return nil
	}
	msg := cause.Error()
	if len(msg) > maxDLQErrorLen {
		msg = msg[:maxDLQErrorLen]
	}
	return &msg
}
