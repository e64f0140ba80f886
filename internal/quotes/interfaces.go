package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/pagination"
)

// Repository defines persistence operations for quotes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, quote *models.Quote) (*models.Quote, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	FindAccepted(ctx context.Context, requirementID uuid.UUID) (*models.Quote, error)
	ListByRequirement(ctx context.Context, requirementID uuid.UUID) ([]models.Quote, error)
	ListByRequirementIDs(ctx context.Context, requirementIDs []uuid.UUID) ([]models.Quote, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, params pagination.Params) ([]models.Quote, error)
	// Accept flips a new quote to accepted only when no sibling is accepted.
	// It reports false when the conditional update matched no row.
	Accept(ctx context.Context, quote *models.Quote, at time.Time) (bool, error)
	// Reject flips a new quote to rejected and reports false when it was not new.
	Reject(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
