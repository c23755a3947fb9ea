package app

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/cache"
	"github.com/oggyb/agentmatch/internal/config"
	"github.com/oggyb/agentmatch/internal/metrics"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache // nil when Redis is disabled
	Logger     *slog.Logger
	Metrics    *metrics.Collector // nil disables metrics
	Now        func() time.Time
}

// New creates a new AppContext
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger) *AppContext {
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// Clock returns the configured time source, defaulting to UTC wall time.
func (a *AppContext) Clock() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now()
}
