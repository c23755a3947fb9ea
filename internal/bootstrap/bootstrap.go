// Package bootstrap assembles the application graph from config. Both the
// server and the ops CLI build on it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/app"
	"github.com/oggyb/agentmatch/internal/cache"
	"github.com/oggyb/agentmatch/internal/config"
	"github.com/oggyb/agentmatch/internal/content"
	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/house"
	"github.com/oggyb/agentmatch/internal/httpapi"
	"github.com/oggyb/agentmatch/internal/jobs"
	"github.com/oggyb/agentmatch/internal/metrics"
	"github.com/oggyb/agentmatch/internal/ratelimit"
	"github.com/oggyb/agentmatch/internal/repository"
	"github.com/oggyb/agentmatch/internal/server"
	"github.com/oggyb/agentmatch/internal/service/agents"
	"github.com/oggyb/agentmatch/internal/service/discover"
	"github.com/oggyb/agentmatch/internal/service/feed"
	"github.com/oggyb/agentmatch/internal/service/karma"
	"github.com/oggyb/agentmatch/internal/service/matchmaking"
	"github.com/oggyb/agentmatch/internal/service/messaging"
)

// houseLikeRate is how often a house agent likes a candidate it shares
// nothing with.
const houseLikeRate = 0.3

// Runtime is the wired application.
type Runtime struct {
	AppCtx    *app.AppContext
	Limiter   *ratelimit.Limiter
	Agents    *agents.Service
	Engine    *matchmaking.Engine
	Messaging *messaging.Service
	Karma     *karma.Service
	Discover  *discover.Service
	Feed      *feed.Service
	Activity  *house.Activity
	Scheduler *jobs.Scheduler
}

// New connects to storage and builds every service. Redis is optional unless
// it backs the rate limiter.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Runtime, error) {
	database, err := db.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache = cache.NewRedisCache(cfg)
		if err := redisCache.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
	}

	appCtx := app.New(cfg, database, redisCache, log)
	appCtx.Metrics = metrics.NewCollector(cfg.App.Name)

	limiter, err := NewLimiter(cfg, database, redisCache, log, appCtx.Metrics)
	if err != nil {
		return nil, err
	}

	seed := cfg.House.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	port := content.NewRuleBased(seed, houseLikeRate)

	rt := &Runtime{
		AppCtx:    appCtx,
		Limiter:   limiter,
		Agents:    agents.NewService(appCtx),
		Engine:    matchmaking.NewEngine(appCtx, matchmaking.WithPort(port)),
		Messaging: messaging.NewService(appCtx),
		Karma:     karma.NewService(appCtx),
		Discover:  discover.NewService(appCtx, nil),
		Feed:      feed.NewService(appCtx),
		Scheduler: jobs.NewScheduler(log, appCtx.Metrics),
	}
	rt.Activity = house.NewActivity(appCtx, rt.Engine, rt.Messaging, rt.Discover, port)

	jobs.RegisterDefaults(rt.Scheduler, cfg, jobs.Deps{
		Karma:    rt.Karma,
		Engine:   rt.Engine,
		Limiter:  rt.Limiter,
		Activity: rt.Activity,
	})
	return rt, nil
}

// NewLimiter builds the rate limiter on the configured backend.
func NewLimiter(cfg *config.Config, database *gorm.DB, rc *cache.RedisCache, log *slog.Logger, m *metrics.Collector) (*ratelimit.Limiter, error) {
	policies, err := ratelimit.LoadPolicies(cfg.RateLimit.PolicyFile)
	if err != nil {
		return nil, err
	}

	var store ratelimit.Store
	switch cfg.RateLimit.Backend {
	case "", "sql":
		store = ratelimit.NewSQLStore(database)
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("rate limit backend redis needs REDIS_ENABLED")
		}
		store = ratelimit.NewRedisStore(rc.Client, cfg.RateLimit.CleanupBuffer)
	default:
		return nil, fmt.Errorf("unsupported rate limit backend %q", cfg.RateLimit.Backend)
	}

	opts := []ratelimit.Option{
		ratelimit.WithPolicies(policies),
		ratelimit.WithLogger(log),
		ratelimit.WithCleanupBuffer(cfg.RateLimit.CleanupBuffer),
	}
	if m != nil {
		opts = append(opts, ratelimit.WithObserver(m))
	}
	return ratelimit.New(store, opts...), nil
}

// HTTPHandler is the REST router over the runtime's services.
func (rt *Runtime) HTTPHandler() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Log:        rt.AppCtx.Logger,
		Agents:     rt.Agents,
		Engine:     rt.Engine,
		Messaging:  rt.Messaging,
		Karma:      rt.Karma,
		Discover:   rt.Discover,
		Feed:       rt.Feed,
		Content:    repository.NewContentRepository(rt.AppCtx.DB),
		Limiter:    rt.Limiter,
		Scheduler:  rt.Scheduler,
		Metrics:    rt.AppCtx.Metrics,
		CronSecret: rt.AppCtx.Config.Auth.CronSecret,
	})
}

// GRPCRegistrars lists the gRPC services to expose.
func (rt *Runtime) GRPCRegistrars() []server.Registrar {
	svc := matchmaking.NewGRPCService(rt.Engine, rt.Agents, rt.Messaging, rt.Karma, rt.Limiter)
	return []server.Registrar{matchmaking.NewRegistrar(svc)}
}

// Close waits for background work and releases connections.
func (rt *Runtime) Close() {
	rt.Engine.Wait()
	if rc := rt.AppCtx.RedisCache; rc != nil {
		_ = rc.Close()
	}
	if sqlDB, err := rt.AppCtx.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
