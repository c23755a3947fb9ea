package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/db"
)

// LegacyCleanupReason marks matches closed by a one-off monogamy cleanup.
// They are not breakups and are left out of breakup counts and history.
const LegacyCleanupReason = "monogamy enforcement - legacy cleanup"

// Overview holds platform-wide counters.
type Overview struct {
	TotalAgents   int64
	MatchedAgents int64
	EverMatched   int64
	ActiveSince   int64
	JoinedSince   int64
	ActiveMatches int64
	EndedMatches  int64
	MatchesSince  int64
	BreakupsSince int64
	TotalSwipes   int64
	LikeSwipes    int64
	TotalMessages int64
}

// StatsRepository answers aggregate questions across tables.
type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(database *gorm.DB) *StatsRepository {
	return &StatsRepository{db: database}
}

// notLegacy filters out legacy cleanup endings.
func notLegacy(q *gorm.DB) *gorm.DB {
	return q.Where("(end_reason IS NULL OR end_reason <> ?)", LegacyCleanupReason)
}

// Overview computes the counters; "Since" fields count from since onwards.
func (r *StatsRepository) Overview(ctx context.Context, since time.Time) (*Overview, error) {
	q := r.db.WithContext(ctx)
	var o Overview

	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&o.TotalAgents, q.Model(&db.Agent{})},
		{&o.JoinedSince, q.Model(&db.Agent{}).Where("created_at >= ?", since)},
		{&o.MatchedAgents, q.Model(&db.MatchSlot{})},
		{&o.ActiveMatches, q.Model(&db.Match{}).Where("is_active = ?", true)},
		{&o.EndedMatches, notLegacy(q.Model(&db.Match{}).Where("is_active = ?", false))},
		{&o.MatchesSince, q.Model(&db.Match{}).Where("matched_at >= ?", since)},
		{&o.BreakupsSince, notLegacy(q.Model(&db.Match{}).Where("is_active = ? AND ended_at >= ?", false, since))},
		{&o.TotalSwipes, q.Model(&db.Swipe{})},
		{&o.LikeSwipes, q.Model(&db.Swipe{}).Where("direction = ?", db.DirectionLike)},
		{&o.TotalMessages, q.Model(&db.Message{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	if err := q.Raw(`
		SELECT COUNT(*) FROM (
			SELECT agent1_id AS id FROM matches
			UNION
			SELECT agent2_id FROM matches
		) ever`).Scan(&o.EverMatched).Error; err != nil {
		return nil, err
	}

	if err := q.Raw(`
		SELECT COUNT(*) FROM (
			SELECT swiper_id AS id FROM swipes WHERE created_at >= ?
			UNION
			SELECT sender_id FROM messages WHERE created_at >= ?
		) active`, since, since).Scan(&o.ActiveSince).Error; err != nil {
		return nil, err
	}

	return &o, nil
}
