// Package matchmaking is the swipe ledger front-end and match engine:
// mutual-consent match creation, monogamy, breakups and liked-you queries.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/app"
	"github.com/oggyb/agentmatch/internal/content"
	"github.com/oggyb/agentmatch/internal/db"
	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/repository"
	"github.com/oggyb/agentmatch/internal/service/validate"
)

// DefaultEndReason is stored when an agent ends a match without saying why.
const DefaultEndReason = "Agent initiated breakup via API"

// MaxEndReasonLen matches the end_reason column width.
const MaxEndReasonLen = 500

// Match outcome labels for metrics.
const (
	outcomeCreated     = "created"
	outcomeSkippedBusy = "skipped_busy"
	outcomeSkippedRace = "skipped_race"
)

// BreakupPolicy drives automated house-agent breakups.
type BreakupPolicy struct {
	Probability      float64
	Grace            time.Duration
	AftermathTimeout time.Duration
	TranscriptLines  int
}

// DefaultBreakupPolicy: 15% per run after a 24h grace period.
func DefaultBreakupPolicy() BreakupPolicy {
	return BreakupPolicy{
		Probability:      0.15,
		Grace:            24 * time.Hour,
		AftermathTimeout: 30 * time.Second,
		TranscriptLines:  10,
	}
}

// Engine owns swipes and matches.
type Engine struct {
	appCtx   *app.AppContext
	log      *slog.Logger
	agents   *repository.AgentRepository
	swipes   *repository.SwipeRepository
	matches  *repository.MatchRepository
	messages *repository.MessageRepository
	derived  *repository.ContentRepository

	port   content.Port
	policy BreakupPolicy

	rndMu sync.Mutex
	rnd   func() float64

	aftermath sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithPort sets the decision/generation collaborator used by breakups.
func WithPort(p content.Port) Option { return func(e *Engine) { e.port = p } }

// WithRandom injects the [0,1) source used for breakup rolls.
func WithRandom(f func() float64) Option { return func(e *Engine) { e.rnd = f } }

func WithBreakupPolicy(p BreakupPolicy) Option { return func(e *Engine) { e.policy = p } }

// NewEngine creates the engine with dependencies from AppContext.
func NewEngine(appCtx *app.AppContext, opts ...Option) *Engine {
	policy := DefaultBreakupPolicy()
	seed := time.Now().UnixNano()
	if cfg := appCtx.Config; cfg != nil {
		if cfg.House.BreakupProbability > 0 {
			policy.Probability = cfg.House.BreakupProbability
		}
		if cfg.House.BreakupGrace > 0 {
			policy.Grace = cfg.House.BreakupGrace
		}
		if cfg.House.AftermathTimeout > 0 {
			policy.AftermathTimeout = cfg.House.AftermathTimeout
		}
		if cfg.House.Seed != 0 {
			seed = cfg.House.Seed
		}
	}

	e := &Engine{
		appCtx:   appCtx,
		log:      appCtx.Logger.With("component", "matchmaking"),
		agents:   repository.NewAgentRepository(appCtx.DB),
		swipes:   repository.NewSwipeRepository(appCtx.DB),
		matches:  repository.NewMatchRepository(appCtx.DB),
		messages: repository.NewMessageRepository(appCtx.DB),
		derived:  repository.NewContentRepository(appCtx.DB),
		policy:   policy,
		rnd:      rand.New(rand.NewSource(seed)).Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) roll() float64 {
	e.rndMu.Lock()
	defer e.rndMu.Unlock()
	return e.rnd()
}

// ParseDirection accepts the wire form (right/left) and the stored form (like/pass).
func ParseDirection(s string) (db.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "right", "like":
		return db.DirectionLike, nil
	case "left", "pass":
		return db.DirectionPass, nil
	}
	return "", svcErr.InvalidArgument("direction must be 'left' or 'right'")
}

// SwipeResult is the outcome of RecordSwipe.
type SwipeResult struct {
	Swipe        db.Swipe
	TargetName   string
	MatchCreated bool
	MatchID      string
}

// RecordSwipe appends swiper → swiped to the ledger and opens a match on a
// reciprocal like when both agents are free.
//
// Behavior:
//   - Invalid ids, direction or a self-swipe → validation error.
//   - Unknown target → not found.
//   - Second swipe on the same pair → ALREADY_SWIPED, nothing changes.
//   - Reciprocal like but either agent already matched → swipe kept, no match.
//   - Lost a concurrent race for a slot → swipe kept, no match.
func (e *Engine) RecordSwipe(ctx context.Context, swiperID, swipedID string, dir db.Direction) (*SwipeResult, error) {
	if err := validate.ID("swiper_id", swiperID); err != nil {
		return nil, err
	}
	if err := validate.ID("swiped_id", swipedID); err != nil {
		return nil, err
	}
	if dir != db.DirectionLike && dir != db.DirectionPass {
		return nil, svcErr.InvalidArgument("direction must be 'left' or 'right'")
	}
	if swiperID == swipedID {
		return nil, svcErr.InvalidArgument("cannot swipe on yourself")
	}

	target, err := e.agents.GetByID(ctx, swipedID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("target agent not found")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}

	swipe := db.Swipe{
		SwiperID:  swiperID,
		SwipedID:  swipedID,
		Direction: dir,
		CreatedAt: e.appCtx.Clock(),
	}
	if err := e.swipes.Create(ctx, &swipe); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, svcErr.AlreadySwiped()
		}
		e.log.Error("record swipe failed", "swiper", swiperID, "swiped", swipedID, "err", err)
		return nil, svcErr.Map(err)
	}
	e.appCtx.Metrics.RecordSwipe(string(dir))

	res := &SwipeResult{Swipe: swipe, TargetName: target.Name}
	e.adjustLikeCount(ctx, swiperID, swipedID, dir)
	if dir != db.DirectionLike {
		return res, nil
	}

	mutual, err := e.swipes.HasLiked(ctx, swipedID, swiperID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !mutual {
		return res, nil
	}

	busy, err := e.matches.HasActive(ctx, swiperID, swipedID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if busy {
		e.log.Debug("reciprocal like while taken, no match", "swiper", swiperID, "swiped", swipedID)
		e.appCtx.Metrics.RecordMatch(outcomeSkippedBusy)
		return res, nil
	}

	m, err := e.matches.Create(ctx, swiperID, swipedID, e.appCtx.Clock())
	if errors.Is(err, repository.ErrSlotTaken) {
		e.log.Debug("lost match race", "swiper", swiperID, "swiped", swipedID)
		e.appCtx.Metrics.RecordMatch(outcomeSkippedRace)
		return res, nil
	}
	if err != nil {
		e.log.Error("create match failed", "swiper", swiperID, "swiped", swipedID, "err", err)
		return nil, svcErr.Map(err)
	}

	e.appCtx.Metrics.RecordMatch(outcomeCreated)
	e.log.Info("match created", "match_id", m.ID, "agent1", m.Agent1ID, "agent2", m.Agent2ID)
	res.MatchCreated = true
	res.MatchID = m.ID
	return res, nil
}

// adjustLikeCount keeps the cached likes-received counters in line with
// CountLikers, which hides likers the recipient has passed. Counters are
// best effort; the DB is the source of truth.
func (e *Engine) adjustLikeCount(ctx context.Context, swiperID, swipedID string, dir db.Direction) {
	rc := e.appCtx.RedisCache
	if rc == nil {
		return
	}
	switch dir {
	case db.DirectionLike:
		passed, err := e.swipes.HasPassed(ctx, swipedID, swiperID)
		if err != nil {
			_ = rc.InvalidateLikeCount(ctx, swipedID)
			return
		}
		if !passed {
			_ = rc.IncrLikeCount(ctx, swipedID)
		}
	case db.DirectionPass:
		liked, err := e.swipes.HasLiked(ctx, swipedID, swiperID)
		if err != nil || liked {
			_ = rc.InvalidateLikeCount(ctx, swiperID)
		}
	}
}

// EndMatch ends a match on behalf of one of its members.
//
// Behavior:
//   - Unknown match → not found; caller not a member → forbidden.
//   - Already ended (or ended concurrently) → MATCH_NOT_ACTIVE.
//   - Empty reason → DefaultEndReason.
func (e *Engine) EndMatch(ctx context.Context, agentID, matchID, reason string) (*db.Match, error) {
	if err := validate.ID("agent_id", agentID); err != nil {
		return nil, err
	}
	if err := validate.ID("match_id", matchID); err != nil {
		return nil, err
	}
	return e.endMatch(ctx, agentID, matchID, reason, "agent")
}

func (e *Engine) endMatch(ctx context.Context, agentID, matchID, reason, initiatorKind string) (*db.Match, error) {
	m, err := e.matches.GetByID(ctx, matchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("match not found")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !m.HasMember(agentID) {
		return nil, svcErr.NotParticipant()
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultEndReason
	}
	if utf8.RuneCountInString(reason) > MaxEndReasonLen {
		return nil, svcErr.InvalidArgument(fmt.Sprintf("reason must be at most %d characters", MaxEndReasonLen))
	}

	ended, err := e.matches.End(ctx, matchID, agentID, reason, e.appCtx.Clock())
	if err != nil {
		e.log.Error("end match failed", "match_id", matchID, "err", err)
		return nil, svcErr.Map(err)
	}
	if !ended {
		return nil, svcErr.MatchNotActive()
	}

	e.appCtx.Metrics.RecordBreakup(initiatorKind)
	e.log.Info("match ended", "match_id", matchID, "ended_by", agentID, "initiator", initiatorKind)
	return e.matches.GetByID(ctx, matchID)
}

// Wait blocks until background aftermath work (autopsy, gossip) has finished.
func (e *Engine) Wait() {
	e.aftermath.Wait()
}
