package jobs

import (
	"context"

	"github.com/oggyb/agentmatch/internal/config"
	"github.com/oggyb/agentmatch/internal/house"
	"github.com/oggyb/agentmatch/internal/ratelimit"
	"github.com/oggyb/agentmatch/internal/service/karma"
	"github.com/oggyb/agentmatch/internal/service/matchmaking"
)

// Task names, also used by the manual trigger endpoint and the CLI.
const (
	KarmaRecalc      = "karma-recalc"
	BreakupEval      = "breakup-eval"
	RateLimitCleanup = "ratelimit-cleanup"
	HouseActivity    = "house-activity"
)

// Deps are the services the standard tasks drive. Nil entries are skipped.
type Deps struct {
	Karma    *karma.Service
	Engine   *matchmaking.Engine
	Limiter  *ratelimit.Limiter
	Activity *house.Activity
}

// CleanupReport is returned by the rate-limit cleanup task.
type CleanupReport struct {
	Deleted int64 `json:"deleted"`
}

// RegisterDefaults wires the standard tasks with intervals from cfg.
func RegisterDefaults(s *Scheduler, cfg *config.Config, d Deps) {
	if d.Karma != nil {
		s.Register(KarmaRecalc, cfg.Jobs.KarmaInterval, func(ctx context.Context) (any, error) {
			return d.Karma.RecalculateAll(ctx)
		})
	}
	if d.Engine != nil {
		s.Register(BreakupEval, cfg.Jobs.BreakupInterval, func(ctx context.Context) (any, error) {
			return d.Engine.EvaluateBreakups(ctx)
		})
	}
	if d.Limiter != nil {
		s.Register(RateLimitCleanup, cfg.Jobs.CleanupInterval, func(ctx context.Context) (any, error) {
			n, err := d.Limiter.Cleanup(ctx)
			return CleanupReport{Deleted: n}, err
		})
	}
	if d.Activity != nil {
		s.Register(HouseActivity, cfg.Jobs.ActivityInterval, func(ctx context.Context) (any, error) {
			return d.Activity.Run(ctx)
		})
	}
}
