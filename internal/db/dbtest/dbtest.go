// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/agentmatch/internal/db"
)

var seq atomic.Int64

// Open returns a migrated in-memory SQLite database private to the test.
//
// A single connection is used so concurrent goroutines share one
// database and queue on it the way a real pool queues on row locks.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:agentmatch_%d?mode=memory&cache=shared&_busy_timeout=5000", seq.Add(1))
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

// CreateAgent inserts an agent with a unique name. Options tweak the row
// before insert.
func CreateAgent(t testing.TB, database *gorm.DB, opts ...func(*db.Agent)) db.Agent {
	t.Helper()
	a := db.Agent{
		ID:        uuid.NewString(),
		Name:      "agent_" + uuid.NewString()[:8],
		CreatedAt: time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond),
	}
	for _, opt := range opts {
		opt(&a)
	}
	if err := database.Create(&a).Error; err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}
	return a
}

// House marks the agent as a house agent.
func House(a *db.Agent) { a.IsHouseAgent = true }
