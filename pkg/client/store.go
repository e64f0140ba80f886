package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Submission kinds.
const (
	KindRequirement = "requirement"
	KindQuote       = "quote"
)

// PendingSubmission is a write that has not reached the API yet.
type PendingSubmission struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Kind           string    `gorm:"column:kind;type:text;not null;index"`
	RequirementID  *string   `gorm:"column:requirement_id;type:text"`
	IdempotencyKey string    `gorm:"column:idempotency_key;type:text;not null;uniqueIndex"`
	Body           string    `gorm:"column:body;type:text;not null"`
	Attempts       int       `gorm:"column:attempts;not null;default:0"`
	LastError      *string   `gorm:"column:last_error;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PendingSubmission) TableName() string { return "pending_submissions" }

// CachedRecord is the last known state of a requirement or quote. Pending
// rows are keyed by the local submission id until reconciled.
type CachedRecord struct {
	Kind      string    `gorm:"column:kind;type:text;primaryKey"`
	ID        string    `gorm:"column:id;type:text;primaryKey"`
	Pending   bool      `gorm:"column:pending;not null;default:false"`
	Data      string    `gorm:"column:data;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CachedRecord) TableName() string { return "cached_records" }

// PendingStore persists pending submissions and the record cache.
type PendingStore struct {
	db *gorm.DB
}

// OpenPendingStore opens (or creates) the sqlite file at path.
func OpenPendingStore(path string) (*PendingStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("pending store path is required")
	}
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open pending store: %w", err)
	}
	return NewPendingStore(conn)
}

// NewPendingStore migrates the pending tables on conn.
func NewPendingStore(conn *gorm.DB) (*PendingStore, error) {
	if conn == nil {
		return nil, errors.New("pending store db is required")
	}
	if err := conn.AutoMigrate(&PendingSubmission{}, &CachedRecord{}); err != nil {
		return nil, fmt.Errorf("migrate pending store: %w", err)
	}
	return &PendingStore{db: conn}, nil
}

// Close releases the underlying connection.
func (s *PendingStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SavePending stores the submission and its pending cache entry together.
func (s *PendingStore) SavePending(ctx context.Context, sub *PendingSubmission, record any) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode pending record: %w", err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			return fmt.Errorf("insert pending submission: %w", err)
		}
		cached := CachedRecord{Kind: sub.Kind, ID: sub.ID.String(), Pending: true, Data: string(data)}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&cached).Error; err != nil {
			return fmt.Errorf("insert pending cache: %w", err)
		}
		return nil
	})
}

// ListPending returns submissions oldest first.
func (s *PendingStore) ListPending(ctx context.Context) ([]PendingSubmission, error) {
	var rows []PendingSubmission
	err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

// RecordFailure bumps the attempt counter after a replay that could not reach the API.
func (s *PendingStore) RecordFailure(ctx context.Context, id uuid.UUID, cause error) error {
	msg := cause.Error()
	return s.db.WithContext(ctx).Model(&PendingSubmission{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
}

// Resolve drops the submission and its local cache entry, then stores the
// authoritative record under its server id. The local entry is replaced
// wholesale, never merged. Pending quotes that point at a resolved local
// requirement are repointed at its server id.
func (s *PendingStore) Resolve(ctx context.Context, sub PendingSubmission, serverID string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := dropTx(tx, sub); err != nil {
			return err
		}
		if sub.Kind == KindRequirement {
			err := tx.Model(&PendingSubmission{}).
				Where("kind = ? AND requirement_id = ?", KindQuote, sub.ID.String()).
				Update("requirement_id", serverID).Error
			if err != nil {
				return fmt.Errorf("repoint pending quotes: %w", err)
			}
		}
		cached := CachedRecord{Kind: sub.Kind, ID: serverID, Data: string(data)}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&cached).Error; err != nil {
			return fmt.Errorf("store authoritative record: %w", err)
		}
		return nil
	})
}

// Drop removes a submission the server rejected.
func (s *PendingStore) Drop(ctx context.Context, sub PendingSubmission) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return dropTx(tx, sub)
	})
}

func dropTx(tx *gorm.DB, sub PendingSubmission) error {
	if err := tx.Delete(&PendingSubmission{}, "id = ?", sub.ID).Error; err != nil {
		return fmt.Errorf("delete pending submission: %w", err)
	}
	if err := tx.Delete(&CachedRecord{}, "kind = ? AND id = ?", sub.Kind, sub.ID.String()).Error; err != nil {
		return fmt.Errorf("delete pending cache: %w", err)
	}
	return nil
}

// PutRecord replaces the cached copy of an authoritative record.
func (s *PendingStore) PutRecord(ctx context.Context, kind, id string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	cached := CachedRecord{Kind: kind, ID: id, Data: string(data)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&cached).Error
}

// GetRecord loads a cached record into out. It reports false when absent.
func (s *PendingStore) GetRecord(ctx context.Context, kind, id string, out any) (bool, error) {
	var cached CachedRecord
	err := s.db.WithContext(ctx).Where("kind = ? AND id = ?", kind, id).Take(&cached).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(cached.Data), out); err != nil {
		return false, fmt.Errorf("decode cached record: %w", err)
	}
	return true, nil
}

// Records lists cached records of kind, pending entries first.
func (s *PendingStore) Records(ctx context.Context, kind string) ([]CachedRecord, error) {
	var rows []CachedRecord
	err := s.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("pending DESC").Order("updated_at DESC").
		Find(&rows).Error
	return rows, err
}
