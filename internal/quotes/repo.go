package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/sourcing-backend/pkg/db"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/pagination"
)

// AcceptedIndex is the partial unique index backing the single-winner rule.
const AcceptedIndex = "ux_quotes_one_accepted"

type repository struct {
	db *gorm.DB
}

// NewRepository builds a quotes repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, quote *models.Quote) (*models.Quote, error) {
	if quote.Status == "" {
		quote.Status = enums.QuoteStatusNew
	}
	if err := r.db.WithContext(ctx).Create(quote).Error; err != nil {
		return nil, err
	}
	return quote, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) FindAccepted(ctx context.Context, requirementID uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.WithContext(ctx).
		Where("requirement_id = ? AND status = ?", requirementID, enums.QuoteStatusAccepted).
		First(&quote).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) ListByRequirement(ctx context.Context, requirementID uuid.UUID) ([]models.Quote, error) {
	var rows []models.Quote
	err := r.db.WithContext(ctx).
		Where("requirement_id = ?", requirementID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByRequirementIDs(ctx context.Context, requirementIDs []uuid.UUID) ([]models.Quote, error) {
	if len(requirementIDs) == 0 {
		return nil, nil
	}
	var rows []models.Quote
	err := r.db.WithContext(ctx).
		Where("requirement_id IN ?", requirementIDs).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByMerchant(ctx context.Context, merchantID uuid.UUID, params pagination.Params) ([]models.Quote, error) {
	query, err := pagination.Newest(r.db.WithContext(ctx).Where("merchant_id = ?", merchantID), params)
	if err != nil {
		return nil, err
	}
	var rows []models.Quote
	return rows, query.Find(&rows).Error
}

func (r *repository) Accept(ctx context.Context, quote *models.Quote, at time.Time) (bool, error) {
	sibling := r.db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Quote{}).
		Select("1").
		Where("requirement_id = ? AND status = ?", quote.RequirementID, enums.QuoteStatusAccepted)
	res := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status = ?", quote.ID, enums.QuoteStatusNew).
		Where("NOT EXISTS (?)", sibling).
		Updates(map[string]any{
			"status":     enums.QuoteStatusAccepted,
			"decided_at": at,
		})
	if res.Error != nil {
		// the only unique key an accept can touch is the accepted index;
		// sqlite reports it by column rather than by index name
		if dbpkg.IsUniqueViolation(res.Error, "") {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Reject(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status = ?", id, enums.QuoteStatusNew).
		Updates(map[string]any{
			"status":     enums.QuoteStatusRejected,
			"decided_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CursorOf is the pagination key of a quote row.
func CursorOf(quote models.Quote) pagination.Cursor {
	return pagination.Cursor{CreatedAt: quote.CreatedAt, ID: quote.ID}
}
