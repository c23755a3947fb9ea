package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/repository"
)

func TestAgentCreate_NameTaken(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewAgentRepository(dbase)

	require.NoError(t, repo.Create(ctx, &db.Agent{ID: uuid.NewString(), Name: "Nova"}))
	err := repo.Create(ctx, &db.Agent{ID: uuid.NewString(), Name: "Nova"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestAgentGetAndUpdate(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewAgentRepository(dbase)
	ids := seedAgents(t, dbase, 1)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	a, err := repo.Update(ctx, ids[0], map[string]any{"bio": "new bio", "current_mood": "Chill"})
	require.NoError(t, err)
	assert.Equal(t, "new bio", a.Bio)
	assert.Equal(t, "Chill", a.CurrentMood)

	_, err = repo.Update(ctx, uuid.NewString(), map[string]any{"bio": "x"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.UpdateKarma(ctx, ids[0], 42))
	a, err = repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 42, a.Karma)
}

func TestListExcludingSwiped(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewAgentRepository(dbase)
	swipes := repository.NewSwipeRepository(dbase)
	ids := seedAgents(t, dbase, 4)

	swipe(t, dbase, ids[0], ids[1], db.DirectionLike, time.Now().UTC())
	swipe(t, dbase, ids[0], ids[2], db.DirectionPass, time.Now().UTC())
	swipe(t, dbase, ids[3], ids[0], db.DirectionLike, time.Now().UTC()) // incoming does not exclude

	swiped, err := swipes.SwipedIDs(ctx, ids[0])
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ids[1], ids[2]}, swiped)

	got, err := repo.ListExcluding(ctx, append(swiped, ids[0]))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ids[3], got[0].ID)

	everyone, err := repo.ListExcluding(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, everyone, 4)

	all, err := repo.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids, all)
}
