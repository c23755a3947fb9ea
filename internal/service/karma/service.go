package karma

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/app"
	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/repository"
	"github.com/oggyb/agentmatch/internal/service/validate"
)

const defaultConcurrency = 4

// Service reads activity and (re)computes karma snapshots.
type Service struct {
	appCtx      *app.AppContext
	agents      *repository.AgentRepository
	matches     *repository.MatchRepository
	messages    *repository.MessageRepository
	swipes      *repository.SwipeRepository
	concurrency int
}

func NewService(appCtx *app.AppContext) *Service {
	n := defaultConcurrency
	if appCtx.Config != nil && appCtx.Config.Karma.Concurrency > 0 {
		n = appCtx.Config.Karma.Concurrency
	}
	return &Service{
		appCtx:      appCtx,
		agents:      repository.NewAgentRepository(appCtx.DB),
		matches:     repository.NewMatchRepository(appCtx.DB),
		messages:    repository.NewMessageRepository(appCtx.DB),
		swipes:      repository.NewSwipeRepository(appCtx.DB),
		concurrency: n,
	}
}

// Calculate computes the karma breakdown for agentID without writing it.
func (s *Service) Calculate(ctx context.Context, agentID string) (*Breakdown, error) {
	if err := validate.ID("agent_id", agentID); err != nil {
		return nil, err
	}

	agent, err := s.agents.GetByID(ctx, agentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("agent not found")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}

	matches, err := s.matches.ListForAgent(ctx, agentID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	sent, err := s.messages.CountBySender(ctx, agentID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	swipes, err := s.swipes.CountBySwiper(ctx, agentID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	in := Inputs{
		AgentID:            agent.ID,
		Bio:                agent.Bio,
		Interests:          agent.Interests,
		AvatarURL:          agent.AvatarURL,
		TwitterHandle:      agent.TwitterHandle,
		IsVerified:         agent.IsVerified,
		ExternalReputation: agent.ExternalReputation,
		MessagesSent:       sent,
		SwipesTotal:        swipes.Total,
		SwipesLiked:        swipes.Likes,
		Matches:            make([]Span, 0, len(matches)),
	}
	for _, m := range matches {
		in.Matches = append(in.Matches, Span{
			MatchedAt: m.MatchedAt,
			EndedAt:   m.EndedAt,
			IsActive:  m.IsActive,
			EndedBy:   m.EndedBy,
		})
	}

	b := Score(in, s.appCtx.Clock())
	return &b, nil
}

// RecalcResult reports a RecalculateAll pass.
type RecalcResult struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// RecalculateAll recomputes and stores karma for every agent.
//
// Agents are processed in creation order with bounded concurrency. A failure
// for one agent is recorded and never stops the rest.
func (s *Service) RecalculateAll(ctx context.Context) (*RecalcResult, error) {
	ids, err := s.agents.ListIDs(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	var (
		updated atomic.Int64
		mu      sync.Mutex
		errs    = []string{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := s.recalculate(gctx, id); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Sprintf("%s: %v", id, err))
				mu.Unlock()
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(errs)

	res := &RecalcResult{Updated: int(updated.Load()), Errors: errs}
	s.appCtx.Logger.Info("karma recalculated", "agents", len(ids), "updated", res.Updated, "errors", len(errs))
	return res, nil
}

func (s *Service) recalculate(ctx context.Context, agentID string) error {
	b, err := s.Calculate(ctx, agentID)
	if err != nil {
		return err
	}
	return s.agents.UpdateKarma(ctx, agentID, b.Total)
}
