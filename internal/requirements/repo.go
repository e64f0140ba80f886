package requirements

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

var openStatuses = []enums.RequirementStatus{
	enums.RequirementStatusActive,
	enums.RequirementStatusViewed,
	enums.RequirementStatusResponded,
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a requirements repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, req *models.Requirement) (*models.Requirement, error) {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Requirement, error) {
	var req models.Requirement
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Requirement, error) {
	var req models.Requirement
	err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Requirement, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Requirement
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Requirement{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.RequirementStatus) error {
	return r.Update(ctx, id, map[string]any{"status": status})
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Requirement{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Requirement, error) {
	query := r.db.WithContext(ctx).Where("buyer_id = ?", buyerID)
	return r.page(query, params)
}

func (r *repository) ListOpen(ctx context.Context, today time.Time, params pagination.Params) ([]models.Requirement, error) {
	query := r.db.WithContext(ctx).
		Where("status IN ?", openStatuses).
		Where("delivery_deadline >= ?", sqlDate(today))
	return r.page(query, params)
}

func (r *repository) ListExpiredOpen(ctx context.Context, scan ExpiredScan, limit int) ([]models.Requirement, error) {
	var rows []models.Requirement
	query := r.db.WithContext(ctx).
		Where("status IN ?", append([]enums.RequirementStatus{enums.RequirementStatusDraft}, openStatuses...)).
		Where("delivery_deadline < ?", sqlDate(scan.Today))
	if !scan.Since.IsZero() {
		query = query.Where("delivery_deadline >= ?", sqlDate(scan.Since))
	}
	if scan.AfterID != uuid.Nil {
		day, next := sqlDate(scan.AfterDeadline), sqlDate(scan.AfterDeadline.AddDate(0, 0, 1))
		query = query.Where("(delivery_deadline >= ?) OR (delivery_deadline >= ? AND delivery_deadline < ? AND id > ?)",
			next, day, next, scan.AfterID)
	}
	err := query.
		Order("delivery_deadline ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// sqlDate binds a civil date as text so the column is compared as a date,
// not against a timestamp shifted by the session time zone.
func sqlDate(t time.Time) string {
	return t.Format(DateLayout)
}

// page applies the shared newest-first cursor and fetches one row past the limit.
func (r *repository) page(query *gorm.DB, params pagination.Params) ([]models.Requirement, error) {
	query, err := pagination.Newest(query, params)
	if err != nil {
		return nil, err
	}
	var rows []models.Requirement
	return rows, query.Find(&rows).Error
}

// CursorOf is the pagination key of a requirement row.
func CursorOf(req models.Requirement) pagination.Cursor {
	return pagination.Cursor{CreatedAt: req.CreatedAt, ID: req.ID}
}
