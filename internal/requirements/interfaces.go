package requirements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/pagination"
)

// Repository defines persistence operations for requirements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.Requirement) (*models.Requirement, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Requirement, error)
	// FindByIDForUpdate locks the row for the rest of the transaction on postgres.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Requirement, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Requirement, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.RequirementStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Requirement, error)
	// ListOpen returns rows whose stored status accepts quotes and whose deadline is on or after today.
	ListOpen(ctx context.Context, today time.Time, params pagination.Params) ([]models.Requirement, error)
	// ListExpiredOpen returns rows still stored as open whose deadline is before
	// scan.Today, ordered by deadline then id.
	ListExpiredOpen(ctx context.Context, scan ExpiredScan, limit int) ([]models.Requirement, error)
}

// ExpiredScan bounds one page of ListExpiredOpen. A zero Since scans from the
// beginning; a zero AfterID starts at the first row.
type ExpiredScan struct {
	Today         time.Time
	Since         time.Time
	AfterDeadline time.Time
	AfterID       uuid.UUID
}
