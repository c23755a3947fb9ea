package discover

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/app"
	"github.com/oggyb/agentmatch/internal/db"
	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/repository"
	"github.com/oggyb/agentmatch/internal/service/validate"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// Candidate is a ranked agent to swipe on.
type Candidate struct {
	Agent              db.Agent
	CompatibilityScore int
}

// Page is one page of candidates.
type Page struct {
	Candidates []Candidate
	Total      int
	Limit      int
	Offset     int
}

// Service lists candidates that an agent has not swiped on yet.
type Service struct {
	appCtx *app.AppContext
	agents *repository.AgentRepository
	swipes *repository.SwipeRepository
	ranker Ranker
}

// NewService uses CompatibilityRanker when ranker is nil.
func NewService(appCtx *app.AppContext, ranker Ranker) *Service {
	if ranker == nil {
		ranker = CompatibilityRanker{}
	}
	return &Service{
		appCtx: appCtx,
		agents: repository.NewAgentRepository(appCtx.DB),
		swipes: repository.NewSwipeRepository(appCtx.DB),
		ranker: ranker,
	}
}

// Candidates ranks every agent agentID may still swipe on and returns one page.
//
// Behavior:
//   - Excludes agentID itself and everyone it already swiped on.
//   - limit outside 1..50 is clamped, 0 means 20; offset must be >= 0.
//   - Ties keep newest-registered first.
func (s *Service) Candidates(ctx context.Context, agentID string, limit, offset int) (*Page, error) {
	if err := validate.ID("agent_id", agentID); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, svcErr.InvalidArgument("offset must be >= 0")
	}
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}

	self, err := s.agents.GetByID(ctx, agentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("agent not found")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}

	seen, err := s.swipes.SwipedIDs(ctx, agentID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	pool, err := s.agents.ListExcluding(ctx, append(seen, agentID))
	if err != nil {
		return nil, svcErr.Map(err)
	}

	ranked := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		ranked = append(ranked, Candidate{Agent: c, CompatibilityScore: s.ranker.Score(*self, c)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompatibilityScore > ranked[j].CompatibilityScore
	})

	page := &Page{Total: len(ranked), Limit: limit, Offset: offset, Candidates: []Candidate{}}
	if offset < len(ranked) {
		end := min(offset+limit, len(ranked))
		page.Candidates = ranked[offset:end]
	}
	return page, nil
}

// Compatibility is the score between two specific agents.
type Compatibility struct {
	Score           int      `json:"compatibility_score"`
	SharedInterests []string `json:"shared_interests"`
}

// Compare scores agent a against agent b.
func (s *Service) Compare(ctx context.Context, a, b string) (*Compatibility, error) {
	if err := validate.ID("agent1_id", a); err != nil {
		return nil, err
	}
	if err := validate.ID("agent2_id", b); err != nil {
		return nil, err
	}
	agents, err := s.agents.GetByIDs(ctx, []string{a, b})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	first, ok1 := agents[a]
	second, ok2 := agents[b]
	if !ok1 || !ok2 {
		return nil, svcErr.NotFound("agent not found")
	}
	return &Compatibility{
		Score:           s.ranker.Score(first, second),
		SharedInterests: SharedInterests(first, second),
	}, nil
}
