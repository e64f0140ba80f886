package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/pagination"
)

// Repository defines persistence operations for orders derived from accepted quotes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByRequirement(ctx context.Context, requirementID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// ListConfirmed returns confirmed orders where partyID is buyer or merchant; uuid.Nil lists all.
	ListConfirmed(ctx context.Context, partyID uuid.UUID, params pagination.Params) ([]models.Order, error)
	ListByParty(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, error)
}
