package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/db"
)

// AgentRepository provides data access methods for the Agent model.
type AgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository creates a new repository bound to the given DB connection.
func NewAgentRepository(database *gorm.DB) *AgentRepository {
	return &AgentRepository{db: database}
}

// Create inserts a new agent. A taken name returns ErrDuplicate.
func (r *AgentRepository) Create(ctx context.Context, a *db.Agent) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID returns gorm.ErrRecordNotFound for unknown ids.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*db.Agent, error) {
	var a db.Agent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByIDs loads agents keyed by id. Unknown ids are absent from the map.
func (r *AgentRepository) GetByIDs(ctx context.Context, ids []string) (map[string]db.Agent, error) {
	out := make(map[string]db.Agent, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var agents []db.Agent
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&agents).Error; err != nil {
		return nil, err
	}
	for _, a := range agents {
		out[a.ID] = a
	}
	return out, nil
}

// Exists reports whether an agent with id exists.
func (r *AgentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Agent{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// FindByKeyPrefix returns every agent whose key starts with prefix.
// Prefixes are not unique; callers verify the full key against each hash.
func (r *AgentRepository) FindByKeyPrefix(ctx context.Context, prefix string) ([]db.Agent, error) {
	var agents []db.Agent
	err := r.db.WithContext(ctx).Where("api_key_prefix = ?", prefix).Find(&agents).Error
	return agents, err
}

// Update applies a column → value patch and returns the fresh row.
func (r *AgentRepository) Update(ctx context.Context, id string, patch map[string]any) (*db.Agent, error) {
	if len(patch) > 0 {
		res := r.db.WithContext(ctx).Model(&db.Agent{}).Where("id = ?", id).Updates(patch)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}
	return r.GetByID(ctx, id)
}

// UpdateKarma writes only the derived karma column.
func (r *AgentRepository) UpdateKarma(ctx context.Context, id string, karma int) error {
	return r.db.WithContext(ctx).Model(&db.Agent{}).
		Where("id = ?", id).
		UpdateColumn("karma", karma).Error
}

// ListIDs returns every agent id in creation order.
func (r *AgentRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&db.Agent{}).
		Order("created_at ASC, id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// List returns agents in creation order.
func (r *AgentRepository) List(ctx context.Context, limit, offset int) ([]db.Agent, error) {
	var agents []db.Agent
	err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Limit(limit).Offset(offset).
		Find(&agents).Error
	return agents, err
}

// ListHouseAgents returns up to limit house agents.
func (r *AgentRepository) ListHouseAgents(ctx context.Context, limit int) ([]db.Agent, error) {
	var agents []db.Agent
	err := r.db.WithContext(ctx).
		Where("is_house_agent = ?", true).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&agents).Error
	return agents, err
}

// ListExcluding returns every agent whose id is not in exclude, newest first.
func (r *AgentRepository) ListExcluding(ctx context.Context, exclude []string) ([]db.Agent, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC, id ASC")
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var agents []db.Agent
	err := q.Find(&agents).Error
	return agents, err
}

// RegisteredSince returns agents created at or after since, newest first.
func (r *AgentRepository) RegisteredSince(ctx context.Context, since time.Time, limit int) ([]db.Agent, error) {
	var agents []db.Agent
	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Limit(limit).
		Find(&agents).Error
	return agents, err
}
