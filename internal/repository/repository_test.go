package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/db/dbtest"
)

// setupTestDB opens an isolated in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t)
}

// seedAgents inserts n agents and returns their ids in creation order.
func seedAgents(t *testing.T, gdb *gorm.DB, n int) []string {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	ids := make([]string, n)
	for i := range ids {
		a := db.Agent{
			ID:        uuid.NewString(),
			Name:      "agent_" + uuid.NewString()[:8],
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, gdb.Create(&a).Error)
		ids[i] = a.ID
	}
	return ids
}

func swipe(t *testing.T, gdb *gorm.DB, from, to string, dir db.Direction, at time.Time) {
	t.Helper()
	require.NoError(t, gdb.WithContext(context.Background()).Create(&db.Swipe{
		SwiperID: from, SwipedID: to, Direction: dir, CreatedAt: at,
	}).Error)
}
