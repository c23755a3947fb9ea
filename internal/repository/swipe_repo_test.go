package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/repository"
)

func TestSwipeCreate_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)
	ids := seedAgents(t, dbase, 2)

	err := repo.Create(ctx, &db.Swipe{SwiperID: ids[0], SwipedID: ids[1], Direction: db.DirectionPass})
	require.NoError(t, err)

	// a later like must not overwrite the pass
	err = repo.Create(ctx, &db.Swipe{SwiperID: ids[0], SwipedID: ids[1], Direction: db.DirectionLike})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	liked, err := repo.HasLiked(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.False(t, liked)

	// reverse direction is a different pair
	err = repo.Create(ctx, &db.Swipe{SwiperID: ids[1], SwipedID: ids[0], Direction: db.DirectionLike})
	assert.NoError(t, err)
}

func TestGetLikersAndPagination(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)
	ids := seedAgents(t, dbase, 5)
	me := ids[0]
	now := time.Now().UTC().Truncate(time.Millisecond)

	// agents 1..4 liked me at increasing times
	for i := 1; i <= 4; i++ {
		swipe(t, dbase, ids[i], me, db.DirectionLike, now.Add(time.Duration(i)*time.Minute))
	}
	// I passed agent 4 → excluded
	swipe(t, dbase, me, ids[4], db.DirectionPass, now)

	page1, next, err := repo.GetLikers(ctx, me, nil, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotNil(t, next)
	assert.Equal(t, ids[3], page1[0].SwiperID)
	assert.Equal(t, ids[2], page1[1].SwiperID)

	page2, next, err := repo.GetLikers(ctx, me, next, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Nil(t, next)
	assert.Equal(t, ids[1], page2[0].SwiperID)

	count, err := repo.CountLikers(ctx, me)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestGetNewLikers(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)
	ids := seedAgents(t, dbase, 3)
	me := ids[0]
	now := time.Now().UTC()

	// agent 1 liked me and I liked back → mutual
	swipe(t, dbase, ids[1], me, db.DirectionLike, now)
	swipe(t, dbase, me, ids[1], db.DirectionLike, now)
	// agent 2 liked me, not answered
	swipe(t, dbase, ids[2], me, db.DirectionLike, now)

	swipes, _, err := repo.GetNewLikers(ctx, me, nil, 10)
	require.NoError(t, err)
	require.Len(t, swipes, 1)
	assert.Equal(t, ids[2], swipes[0].SwiperID)
}

func TestGetLikers_BadToken(t *testing.T) {
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)
	bad := "not*base64"
	_, _, err := repo.GetLikers(context.Background(), "x", &bad, 5)
	assert.Error(t, err)
}

func TestCountBySwiper(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)
	ids := seedAgents(t, dbase, 4)
	now := time.Now().UTC()

	swipe(t, dbase, ids[0], ids[1], db.DirectionLike, now)
	swipe(t, dbase, ids[0], ids[2], db.DirectionLike, now)
	swipe(t, dbase, ids[0], ids[3], db.DirectionPass, now)

	c, err := repo.CountBySwiper(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, repository.SwipeCounts{Likes: 2, Total: 3}, c)

	recent, err := repo.Since(ctx, now.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}
