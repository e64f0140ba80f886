// Package dbtest opens isolated in-memory sqlite databases carrying the
// negotiation schema for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
)

// partial indexes that AutoMigrate cannot express; sqlite accepts the same syntax as postgres.
var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_quotes_one_accepted ON quotes (requirement_id) WHERE status = 'accepted'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_once ON outbox_events (event_type, aggregate_type, aggregate_id) WHERE event_type = 'requirement_expired'`,
}

// Open returns a fresh database named after the running test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Requirement{},
		&models.Quote{},
		&models.Order{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	for _, stmt := range indexes {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create index: %v", err)
		}
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// a single connection keeps the shared-cache database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
