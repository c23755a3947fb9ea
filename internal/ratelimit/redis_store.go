package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// errNoEvents is returned by Oldest on an empty window.
var errNoEvents = errors.New("no events in window")

// RedisStore keeps one sorted set per (action, identifier), scored by
// event time in milliseconds.
type RedisStore struct {
	client *redis.Client
	buffer time.Duration
}

// NewRedisStore keeps keys alive for window + buffer after their last event.
func NewRedisStore(client *redis.Client, buffer time.Duration) *RedisStore {
	return &RedisStore{client: client, buffer: buffer}
}

func redisKey(action, identifier string) string {
	return redisKeyPrefix + action + ":" + identifier
}

func ms(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func (s *RedisStore) Count(ctx context.Context, action, identifier string, since time.Time) (int64, error) {
	return s.client.ZCount(ctx, redisKey(action, identifier), ms(since), "+inf").Result()
}

func (s *RedisStore) Oldest(ctx context.Context, action, identifier string, since time.Time) (time.Time, error) {
	res, err := s.client.ZRangeByScoreWithScores(ctx, redisKey(action, identifier), &redis.ZRangeBy{
		Min:    ms(since),
		Max:    "+inf",
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		return time.Time{}, err
	}
	if len(res) == 0 {
		return time.Time{}, errNoEvents
	}
	return time.UnixMilli(int64(res[0].Score)).UTC(), nil
}

func (s *RedisStore) Record(ctx context.Context, action, identifier string, _ KeyType, at time.Time, window time.Duration) error {
	key := redisKey(action, identifier)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: fmt.Sprintf("%d:%s", at.UnixNano(), uuid.NewString()),
	})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+ms(at.Add(-window)))
	pipe.PExpire(ctx, key, window+s.buffer)
	_, err := pipe.Exec(ctx)
	return err
}

// DeleteBefore walks every limiter key; TTLs do most of the work, this trims
// long-lived hot keys.
func (s *RedisStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var (
		deleted int64
		cursor  uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return deleted, err
		}
		for _, key := range keys {
			n, err := s.client.ZRemRangeByScore(ctx, key, "-inf", "("+ms(cutoff)).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}
