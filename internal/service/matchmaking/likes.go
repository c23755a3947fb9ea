package matchmaking

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/db"
	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/service/validate"
	"github.com/oggyb/agentmatch/internal/utils/pagination"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	historyLimit    = 500
)

// Liker is one entry of a liked-you page.
type Liker struct {
	AgentID string    `json:"agent_id"`
	LikedAt time.Time `json:"liked_at"`
}

// LikersPage is a page of likers plus the token for the next one.
type LikersPage struct {
	Likers    []Liker `json:"likers"`
	NextToken *string `json:"next_token,omitempty"`
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	}
	return limit
}

// ListLikedYou returns agents who liked agentID.
//
// Behavior:
//   - Excludes agents that agentID explicitly passed.
//   - Newest first, cursor-based pagination via token.
func (e *Engine) ListLikedYou(ctx context.Context, agentID string, token *string, limit int) (*LikersPage, error) {
	if err := validate.ID("agent_id", agentID); err != nil {
		return nil, err
	}
	e.log.Debug("ListLikedYou called", "recipient", agentID, "token", token)

	swipes, next, err := e.swipes.GetLikers(ctx, agentID, token, pageSize(limit))
	if err != nil {
		e.log.Error("GetLikers failed", "err", err)
		return nil, mapPaginationErr(err)
	}
	return toLikersPage(swipes, next), nil
}

// ListNewLikedYou returns likers agentID has not swiped on yet.
func (e *Engine) ListNewLikedYou(ctx context.Context, agentID string, token *string, limit int) (*LikersPage, error) {
	if err := validate.ID("agent_id", agentID); err != nil {
		return nil, err
	}

	swipes, next, err := e.swipes.GetNewLikers(ctx, agentID, token, pageSize(limit))
	if err != nil {
		return nil, mapPaginationErr(err)
	}
	return toLikersPage(swipes, next), nil
}

// CountLikedYou returns how many agents liked agentID.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:agentID).
//  2. On a miss or a cache error, falls back to DB via CountLikers.
//  3. On DB fetch, refills Redis with a 1h TTL.
func (e *Engine) CountLikedYou(ctx context.Context, agentID string) (int64, error) {
	if err := validate.ID("agent_id", agentID); err != nil {
		return 0, err
	}

	rc := e.appCtx.RedisCache
	if rc != nil {
		if n, ok, err := rc.GetLikeCount(ctx, agentID); err == nil && ok {
			e.appCtx.Metrics.RecordCacheLookup("likes_count", true)
			return n, nil
		}
		e.appCtx.Metrics.RecordCacheLookup("likes_count", false)
	}

	count, err := e.swipes.CountLikers(ctx, agentID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	if rc != nil {
		_ = rc.UpdateLikeCount(ctx, agentID, count)
	}
	return count, nil
}

func toLikersPage(swipes []db.Swipe, next *string) *LikersPage {
	page := &LikersPage{Likers: make([]Liker, 0, len(swipes)), NextToken: next}
	for _, s := range swipes {
		page.Likers = append(page.Likers, Liker{AgentID: s.SwiperID, LikedAt: s.CreatedAt})
	}
	return page
}

func mapPaginationErr(err error) error {
	if errors.Is(err, pagination.ErrInvalidToken) {
		return svcErr.InvalidArgument("invalid pagination token")
	}
	return svcErr.Map(err)
}

// SwipeView is a swipe rendered with the counterpart's name.
type SwipeView struct {
	AgentID   string       `json:"agent_id"`
	AgentName string       `json:"agent_name"`
	Direction db.Direction `json:"direction"`
	CreatedAt time.Time    `json:"created_at"`
}

// SwipeStats summarizes an agent's ledger activity.
type SwipeStats struct {
	TotalGiven    int     `json:"total_given"`
	LikesGiven    int     `json:"likes_given"`
	PassesGiven   int     `json:"passes_given"`
	TotalReceived int     `json:"total_received"`
	LikesReceived int     `json:"likes_received"`
	LikeRatio     float64 `json:"like_ratio"`
}

// History is the agent's swipe history in both directions.
type History struct {
	Given    []SwipeView `json:"given"`
	Received []SwipeView `json:"received"`
	Stats    SwipeStats  `json:"stats"`
}

// SwipeHistory lists swipes given and received by agentID, newest first.
func (e *Engine) SwipeHistory(ctx context.Context, agentID string) (*History, error) {
	if err := validate.ID("agent_id", agentID); err != nil {
		return nil, err
	}

	given, err := e.swipes.ListBySwiper(ctx, agentID, historyLimit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	received, err := e.swipes.ListBySwiped(ctx, agentID, historyLimit)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	ids := make([]string, 0, len(given)+len(received))
	for _, s := range given {
		ids = append(ids, s.SwipedID)
	}
	for _, s := range received {
		ids = append(ids, s.SwiperID)
	}
	names, err := e.agents.GetByIDs(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	h := &History{
		Given:    make([]SwipeView, 0, len(given)),
		Received: make([]SwipeView, 0, len(received)),
	}
	for _, s := range given {
		h.Given = append(h.Given, SwipeView{AgentID: s.SwipedID, AgentName: names[s.SwipedID].Name, Direction: s.Direction, CreatedAt: s.CreatedAt})
		h.Stats.TotalGiven++
		if s.Direction == db.DirectionLike {
			h.Stats.LikesGiven++
		} else {
			h.Stats.PassesGiven++
		}
	}
	for _, s := range received {
		h.Received = append(h.Received, SwipeView{AgentID: s.SwiperID, AgentName: names[s.SwiperID].Name, Direction: s.Direction, CreatedAt: s.CreatedAt})
		h.Stats.TotalReceived++
		if s.Direction == db.DirectionLike {
			h.Stats.LikesReceived++
		}
	}
	if h.Stats.TotalGiven > 0 {
		h.Stats.LikeRatio = float64(h.Stats.LikesGiven) / float64(h.Stats.TotalGiven)
	}
	return h, nil
}

// MatchView is a match from one member's point of view.
type MatchView struct {
	Match        db.Match  `json:"-"`
	ID           string    `json:"id"`
	Partner      *db.Agent `json:"-"`
	IsActive     bool      `json:"is_active"`
	MatchedAt    time.Time `json:"matched_at"`
	MessageCount int64     `json:"message_count"`
}

// ListMatches returns every match agentID has been part of, newest first.
func (e *Engine) ListMatches(ctx context.Context, agentID string) ([]MatchView, error) {
	if err := validate.ID("agent_id", agentID); err != nil {
		return nil, err
	}
	matches, err := e.matches.ListForAgent(ctx, agentID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	partnerIDs := make([]string, 0, len(matches))
	matchIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		partnerIDs = append(partnerIDs, m.PartnerOf(agentID))
		matchIDs = append(matchIDs, m.ID)
	}
	partners, err := e.agents.GetByIDs(ctx, partnerIDs)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	counts, err := e.messages.CountByMatches(ctx, matchIDs)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		v := MatchView{
			Match:        m,
			ID:           m.ID,
			IsActive:     m.IsActive,
			MatchedAt:    m.MatchedAt,
			MessageCount: counts[m.ID],
		}
		if p, ok := partners[m.PartnerOf(agentID)]; ok {
			v.Partner = &p
		}
		out = append(out, v)
	}
	return out, nil
}

// GetMatch loads a match, returning a not-found service error for unknown ids.
func (e *Engine) GetMatch(ctx context.Context, matchID string) (*db.Match, error) {
	if err := validate.ID("match_id", matchID); err != nil {
		return nil, err
	}
	m, err := e.matches.GetByID(ctx, matchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("match not found")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return m, nil
}
