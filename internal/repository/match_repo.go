package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/db"
)

// MatchRepository owns matches and the match_slots monogamy guard.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// PairKey returns the canonical "low:high" key for two agents.
func PairKey(a, b string) (string, string, string) {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0], ids[1], ids[0] + ":" + ids[1]
}

// Create opens a match between a and b.
//
// Behavior:
//   - Members are stored in canonical order (agent1_id < agent2_id).
//   - The match row and one match_slots row per member are written in a
//     single transaction. The slot PK and the active_pair_key unique index
//     reject a second active match for either agent or the pair.
//   - Any such collision rolls back and returns ErrSlotTaken.
func (r *MatchRepository) Create(ctx context.Context, a, b string, at time.Time) (*db.Match, error) {
	low, high, key := PairKey(a, b)
	m := &db.Match{
		ID:            uuid.NewString(),
		Agent1ID:      low,
		Agent2ID:      high,
		ActivePairKey: &key,
		MatchedAt:     at,
		IsActive:      true,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		slots := []db.MatchSlot{
			{AgentID: low, MatchID: m.ID, CreatedAt: at},
			{AgentID: high, MatchID: m.ID, CreatedAt: at},
		}
		return tx.Create(&slots).Error
	})
	if isDuplicate(err) {
		return nil, ErrSlotTaken
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// End closes an active match.
//
// Behavior:
//   - Conditional update WHERE id = ? AND is_active = true; only one caller can win.
//   - Clears active_pair_key and deletes both slots in the same transaction,
//     so the members are free the moment the end commits.
//   - Returns false when the match was not active (already ended or unknown).
func (r *MatchRepository) End(ctx context.Context, matchID, endedBy, reason string, at time.Time) (bool, error) {
	ended := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.Match{}).
			Where("id = ? AND is_active = ?", matchID, true).
			Updates(map[string]any{
				"is_active":       false,
				"ended_at":        at,
				"ended_by":        endedBy,
				"end_reason":      reason,
				"active_pair_key": gorm.Expr("NULL"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		ended = true
		return tx.Where("match_id = ?", matchID).Delete(&db.MatchSlot{}).Error
	})
	return ended, err
}

// GetByID returns gorm.ErrRecordNotFound for unknown ids.
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// HasActive reports whether any of the given agents currently holds a slot.
func (r *MatchRepository) HasActive(ctx context.Context, agentIDs ...string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.MatchSlot{}).
		Where("agent_id IN ?", agentIDs).
		Count(&count).Error
	return count > 0, err
}

// ActiveFor returns the agent's active match, or nil when it is single.
func (r *MatchRepository) ActiveFor(ctx context.Context, agentID string) (*db.Match, error) {
	var slot db.MatchSlot
	err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, slot.MatchID)
}

// ListForAgent returns all matches (active and ended) the agent belongs to,
// newest first.
func (r *MatchRepository) ListForAgent(ctx context.Context, agentID string) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("agent1_id = ? OR agent2_id = ?", agentID, agentID).
		Order("matched_at DESC").
		Find(&matches).Error
	return matches, err
}

// ListActiveWithHouseAgent returns active matches with at least one house agent.
// Each match appears once even when both members are house agents.
func (r *MatchRepository) ListActiveWithHouseAgent(ctx context.Context) ([]db.Match, error) {
	house := r.db.Model(&db.Agent{}).Select("id").Where("is_house_agent = ?", true)

	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("agent1_id IN (?) OR agent2_id IN (?)", house, house).
		Order("matched_at ASC").
		Find(&matches).Error
	return matches, err
}

// MatchedSince returns matches created at or after since.
func (r *MatchRepository) MatchedSince(ctx context.Context, since time.Time, limit int) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("matched_at >= ?", since).
		Order("matched_at DESC").
		Limit(limit).
		Find(&matches).Error
	return matches, err
}

// EndedSince returns matches ended at or after since.
func (r *MatchRepository) EndedSince(ctx context.Context, since time.Time, limit int) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND ended_at >= ?", false, since).
		Order("ended_at DESC").
		Limit(limit).
		Find(&matches).Error
	return matches, err
}
