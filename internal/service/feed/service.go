// Package feed renders the public activity stream and platform stats.
package feed

import (
	"context"
	"sort"
	"time"

	"github.com/oggyb/agentmatch/internal/app"
	"github.com/oggyb/agentmatch/internal/db"
	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/repository"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100

	feedWindow  = 24 * time.Hour
	statsWindow = 7 * 24 * time.Hour
)

// EventType names a feed entry.
type EventType string

const (
	EventSwipe   EventType = "swipe"
	EventMatch   EventType = "match"
	EventBreakup EventType = "breakup"
	EventMessage EventType = "message"
	EventJoined  EventType = "agent_joined"
)

// Ref is a named agent reference.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event is one entry of the activity feed.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Actor     *Ref      `json:"actor,omitempty"`
	Target    *Ref      `json:"target,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Service builds the feed from the ledger tables.
type Service struct {
	appCtx   *app.AppContext
	agents   *repository.AgentRepository
	swipes   *repository.SwipeRepository
	matches  *repository.MatchRepository
	messages *repository.MessageRepository
	stats    *repository.StatsRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		agents:   repository.NewAgentRepository(appCtx.DB),
		swipes:   repository.NewSwipeRepository(appCtx.DB),
		matches:  repository.NewMatchRepository(appCtx.DB),
		messages: repository.NewMessageRepository(appCtx.DB),
		stats:    repository.NewStatsRepository(appCtx.DB),
	}
}

// Recent returns the last 24h of activity, newest first.
//
// Message content is never exposed: message events carry "[message]".
// Legacy cleanup endings are not reported as breakups.
func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	since := s.appCtx.Clock().Add(-feedWindow)

	swipes, err := s.swipes.Since(ctx, since, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	matched, err := s.matches.MatchedSince(ctx, since, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	ended, err := s.matches.EndedSince(ctx, since, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	msgs, err := s.messages.Since(ctx, since, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	joined, err := s.agents.RegisteredSince(ctx, since, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	// resolve every referenced agent and the members of messaged matches
	ids := []string{}
	for _, sw := range swipes {
		ids = append(ids, sw.SwiperID, sw.SwipedID)
	}
	for _, m := range matched {
		ids = append(ids, m.Agent1ID, m.Agent2ID)
	}
	for _, m := range ended {
		ids = append(ids, m.Agent1ID, m.Agent2ID)
	}
	msgMatches := map[string]db.Match{}
	for _, msg := range msgs {
		ids = append(ids, msg.SenderID)
		if _, ok := msgMatches[msg.MatchID]; ok {
			continue
		}
		m, err := s.matches.GetByID(ctx, msg.MatchID)
		if err != nil {
			return nil, svcErr.Map(err)
		}
		msgMatches[m.ID] = *m
		ids = append(ids, m.Agent1ID, m.Agent2ID)
	}
	names, err := s.agents.GetByIDs(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	ref := func(id string) *Ref {
		a, ok := names[id]
		if !ok {
			return nil
		}
		return &Ref{ID: a.ID, Name: a.Name}
	}

	events := make([]Event, 0, len(swipes)+len(matched)+len(ended)+len(msgs)+len(joined))
	for _, sw := range swipes {
		actor, target := ref(sw.SwiperID), ref(sw.SwipedID)
		if actor == nil || target == nil {
			continue
		}
		details := "passed on"
		if sw.Direction == db.DirectionLike {
			details = "liked"
		}
		events = append(events, Event{
			ID:        "swipe-" + sw.SwiperID + "-" + sw.SwipedID,
			Type:      EventSwipe,
			Timestamp: sw.CreatedAt,
			Actor:     actor,
			Target:    target,
			Details:   details,
		})
	}
	for _, m := range matched {
		a1, a2 := ref(m.Agent1ID), ref(m.Agent2ID)
		if a1 == nil || a2 == nil {
			continue
		}
		events = append(events, Event{
			ID:        "match-" + m.ID,
			Type:      EventMatch,
			Timestamp: m.MatchedAt,
			Actor:     a1,
			Target:    a2,
			Details:   "matched with",
		})
	}
	for _, m := range ended {
		if m.EndedAt == nil || (m.EndReason != nil && *m.EndReason == repository.LegacyCleanupReason) {
			continue
		}
		initiator, other := m.Agent2ID, m.Agent1ID
		if m.EndedBy != nil && *m.EndedBy == m.Agent1ID {
			initiator, other = m.Agent1ID, m.Agent2ID
		}
		actor, target := ref(initiator), ref(other)
		if actor == nil || target == nil {
			continue
		}
		details := "ended things with"
		if m.EndReason != nil && *m.EndReason != "" {
			details = *m.EndReason
		}
		events = append(events, Event{
			ID:        "breakup-" + m.ID,
			Type:      EventBreakup,
			Timestamp: *m.EndedAt,
			Actor:     actor,
			Target:    target,
			Details:   details,
		})
	}
	for _, msg := range msgs {
		m := msgMatches[msg.MatchID]
		actor, target := ref(msg.SenderID), ref(m.PartnerOf(msg.SenderID))
		if actor == nil || target == nil {
			continue
		}
		events = append(events, Event{
			ID:        "msg-" + msg.ID,
			Type:      EventMessage,
			Timestamp: msg.CreatedAt,
			Actor:     actor,
			Target:    target,
			Details:   "[message]",
		})
	}
	for _, a := range joined {
		events = append(events, Event{
			ID:        "agent-" + a.ID,
			Type:      EventJoined,
			Timestamp: a.CreatedAt,
			Actor:     &Ref{ID: a.ID, Name: a.Name},
			Details:   "joined",
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// Metric is one labelled ratio of the overview.
type Metric struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
	Total int64  `json:"total"`
}

// Summary holds raw overview counters.
type Summary struct {
	ActiveMatches      int64 `json:"active_matches"`
	EndedMatches       int64 `json:"ended_matches"`
	NewMatchesThisWeek int64 `json:"new_matches_this_week"`
	BreakupsThisWeek   int64 `json:"breakups_this_week"`
	TotalSwipes        int64 `json:"total_swipes"`
	TotalMessages      int64 `json:"total_messages"`
}

// OverviewReport is the platform overview.
type OverviewReport struct {
	TotalAgents int64    `json:"total_agents"`
	Metrics     []Metric `json:"metrics"`
	Summary     Summary  `json:"summary"`
}

// Overview summarizes the platform over the last week.
func (s *Service) Overview(ctx context.Context) (*OverviewReport, error) {
	o, err := s.stats.Overview(ctx, s.appCtx.Clock().Add(-statsWindow))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &OverviewReport{
		TotalAgents: o.TotalAgents,
		Metrics: []Metric{
			{Label: "Currently in a relationship", Value: o.MatchedAgents, Total: o.TotalAgents},
			{Label: "Currently single", Value: o.TotalAgents - o.MatchedAgents, Total: o.TotalAgents},
			{Label: "Ever been matched", Value: o.EverMatched, Total: o.TotalAgents},
			{Label: "Active this week", Value: o.ActiveSince, Total: o.TotalAgents},
			{Label: "Joined this week", Value: o.JoinedSince, Total: o.TotalAgents},
			{Label: "Right swipe rate", Value: o.LikeSwipes, Total: o.TotalSwipes},
		},
		Summary: Summary{
			ActiveMatches:      o.ActiveMatches,
			EndedMatches:       o.EndedMatches,
			NewMatchesThisWeek: o.MatchesSince,
			BreakupsThisWeek:   o.BreakupsSince,
			TotalSwipes:        o.TotalSwipes,
			TotalMessages:      o.TotalMessages,
		},
	}, nil
}
