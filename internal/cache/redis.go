package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/agentmatch/internal/config"
)

// LikeCountTTL is refreshed on every read and write of a counter.
const LikeCountTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

// NewRedisCacheFromClient wraps an existing client (tests, shared pools).
func NewRedisCacheFromClient(c *redis.Client) *RedisCache {
	return &RedisCache{Client: c}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForLikeCount generates Redis key for an agent's likes-received count
func (c *RedisCache) KeyForLikeCount(agentID string) string {
	return fmt.Sprintf("likes:count:%s", agentID)
}

// IncrLikeCount bumps an existing counter. A missing counter is left missing
// so the next read falls back to the database instead of trusting a partial count.
func (c *RedisCache) IncrLikeCount(ctx context.Context, agentID string) error {
	key := c.KeyForLikeCount(agentID)
	n, err := c.Client.Exists(ctx, key).Result()
	if err != nil || n == 0 {
		return err
	}
	pipe := c.Client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, LikeCountTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisCache) UpdateLikeCount(ctx context.Context, agentID string, count int64) error {
	// Always refresh TTL when updating
	return c.Client.Set(ctx, c.KeyForLikeCount(agentID), count, LikeCountTTL).Err()
}

// GetLikeCount returns the cached counter; ok is false on a cache miss.
func (c *RedisCache) GetLikeCount(ctx context.Context, agentID string) (int64, bool, error) {
	key := c.KeyForLikeCount(agentID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// InvalidateLikeCount drops the cached counter so the next read recounts.
func (c *RedisCache) InvalidateLikeCount(ctx context.Context, agentID string) error {
	return c.Client.Del(ctx, c.KeyForLikeCount(agentID)).Err()
}
