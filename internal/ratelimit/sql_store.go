package ratelimit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/db"
)

// SQLStore keeps events in the rate_limit_events table.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(database *gorm.DB) *SQLStore {
	return &SQLStore{db: database}
}

func (s *SQLStore) window(ctx context.Context, action, identifier string, since time.Time) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&db.RateLimitEvent{}).
		Where("action = ? AND identifier = ? AND created_at >= ?", action, identifier, since)
}

func (s *SQLStore) Count(ctx context.Context, action, identifier string, since time.Time) (int64, error) {
	var n int64
	err := s.window(ctx, action, identifier, since).Count(&n).Error
	return n, err
}

func (s *SQLStore) Oldest(ctx context.Context, action, identifier string, since time.Time) (time.Time, error) {
	var ev db.RateLimitEvent
	err := s.window(ctx, action, identifier, since).
		Order("created_at ASC").
		First(&ev).Error
	return ev.CreatedAt, err
}

func (s *SQLStore) Record(ctx context.Context, action, identifier string, key KeyType, at time.Time, _ time.Duration) error {
	return s.db.WithContext(ctx).Create(&db.RateLimitEvent{
		Action:     action,
		Identifier: identifier,
		KeyType:    string(key),
		CreatedAt:  at,
	}).Error
}

func (s *SQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&db.RateLimitEvent{})
	return res.RowsAffected, res.Error
}
