package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/agentmatch/internal/cache"
)

func newCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestLikeCount_MissThenSet(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	_, ok, err := c.GetLikeCount(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	// incr on a missing key stays a miss
	require.NoError(t, c.IncrLikeCount(ctx, "a"))
	assert.False(t, mr.Exists("likes:count:a"))

	require.NoError(t, c.UpdateLikeCount(ctx, "a", 4))
	require.NoError(t, c.IncrLikeCount(ctx, "a"))

	n, ok, err := c.GetLikeCount(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, cache.LikeCountTTL, mr.TTL("likes:count:a"))
}

func TestLikeCount_Invalidate(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	require.NoError(t, c.UpdateLikeCount(ctx, "a", 3))
	mr.FastForward(cache.LikeCountTTL / 2)
	_, ok, err := c.GetLikeCount(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	// reads do not extend the TTL
	assert.Equal(t, cache.LikeCountTTL/2, mr.TTL("likes:count:a"))

	require.NoError(t, c.InvalidateLikeCount(ctx, "a"))
	_, ok, err = c.GetLikeCount(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLikeCount_RedisDown(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)
	mr.Close()

	_, _, err := c.GetLikeCount(ctx, "a")
	assert.Error(t, err)
	assert.Error(t, c.Ping(ctx))
}
