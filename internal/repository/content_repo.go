package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/db"
)

// ContentRepository stores generated autopsies and gossip.
type ContentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new repository bound to the given DB connection.
func NewContentRepository(database *gorm.DB) *ContentRepository {
	return &ContentRepository{db: database}
}

func (r *ContentRepository) CreateAutopsy(ctx context.Context, a *db.Autopsy) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *ContentRepository) CreateGossip(ctx context.Context, g *db.Gossip) error {
	return r.db.WithContext(ctx).Create(g).Error
}

// AutopsiesForMatch returns autopsies of a match, newest first.
func (r *ContentRepository) AutopsiesForMatch(ctx context.Context, matchID string) ([]db.Autopsy, error) {
	var out []db.Autopsy
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// ListGossip returns recent gossip, optionally about one subject.
func (r *ContentRepository) ListGossip(ctx context.Context, subjectID string, limit int) ([]db.Gossip, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if subjectID != "" {
		q = q.Where("subject_agent_id = ?", subjectID)
	}
	var out []db.Gossip
	err := q.Find(&out).Error
	return out, err
}
