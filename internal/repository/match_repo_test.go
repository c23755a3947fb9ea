package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/repository"
)

func TestMatchCreate_CanonicalOrderAndSlots(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)
	ids := seedAgents(t, dbase, 2)

	m, err := repo.Create(ctx, ids[1], ids[0], time.Now().UTC())
	require.NoError(t, err)
	assert.Less(t, m.Agent1ID, m.Agent2ID)
	assert.True(t, m.IsActive)

	var slots int64
	require.NoError(t, dbase.Model(&db.MatchSlot{}).Where("match_id = ?", m.ID).Count(&slots).Error)
	assert.Equal(t, int64(2), slots)

	active, err := repo.HasActive(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, active)
}

func TestMatchCreate_SlotTaken(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)
	ids := seedAgents(t, dbase, 3)

	_, err := repo.Create(ctx, ids[0], ids[1], time.Now().UTC())
	require.NoError(t, err)

	// ids[1] is taken; the whole insert must roll back
	_, err = repo.Create(ctx, ids[1], ids[2], time.Now().UTC())
	assert.ErrorIs(t, err, repository.ErrSlotTaken)

	var count int64
	require.NoError(t, dbase.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	free, err := repo.HasActive(ctx, ids[2])
	require.NoError(t, err)
	assert.False(t, free)
}

func TestMatchEnd_ReleasesSlotsOnce(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)
	ids := seedAgents(t, dbase, 3)

	m, err := repo.Create(ctx, ids[0], ids[1], time.Now().UTC())
	require.NoError(t, err)

	ended, err := repo.End(ctx, m.ID, ids[0], "bored", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ended)

	ended, err = repo.End(ctx, m.ID, ids[1], "me too", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ended)

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Nil(t, got.ActivePairKey)
	require.NotNil(t, got.EndedBy)
	assert.Equal(t, ids[0], *got.EndedBy)
	assert.Equal(t, "bored", *got.EndReason)

	// both free again, and the same pair may re-match
	_, err = repo.Create(ctx, ids[1], ids[0], time.Now().UTC())
	assert.NoError(t, err)

	matches, err := repo.ListForAgent(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestMatchEnd_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)
	ids := seedAgents(t, dbase, 2)

	m, err := repo.Create(ctx, ids[0], ids[1], time.Now().UTC())
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.End(ctx, m.ID, ids[i%2], "race", time.Now().UTC())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestListActiveWithHouseAgent(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)
	ids := seedAgents(t, dbase, 6)

	require.NoError(t, dbase.Model(&db.Agent{}).Where("id IN ?", []string{ids[0], ids[1], ids[2]}).
		Update("is_house_agent", true).Error)

	now := time.Now().UTC()
	both, err := repo.Create(ctx, ids[0], ids[1], now) // two house agents
	require.NoError(t, err)
	one, err := repo.Create(ctx, ids[2], ids[3], now) // one house agent
	require.NoError(t, err)
	_, err = repo.Create(ctx, ids[4], ids[5], now) // none
	require.NoError(t, err)

	got, err := repo.ListActiveWithHouseAgent(ctx)
	require.NoError(t, err)
	var gotIDs []string
	for _, m := range got {
		gotIDs = append(gotIDs, m.ID)
	}
	assert.ElementsMatch(t, []string{both.ID, one.ID}, gotIDs)
}
