package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/db"
)

// MessageRepository stores match transcripts.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// CreateIfActive inserts msg only while its match is active.
//
// The insert selects from the matches row itself, so the activity check and
// the write are one statement: an end that commits first makes this a no-op.
// Returns false when nothing was inserted.
func (r *MessageRepository) CreateIfActive(ctx context.Context, msg *db.Message) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		INSERT INTO messages (id, match_id, sender_id, content, created_at)
		SELECT ?, ?, ?, ?, ?
		FROM matches
		WHERE id = ? AND is_active = ?`,
		msg.ID, msg.MatchID, msg.SenderID, msg.Content, msg.CreatedAt,
		msg.MatchID, true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByMatch returns a page of the transcript, oldest first, with the total count.
func (r *MessageRepository) ListByMatch(ctx context.Context, matchID string, limit, offset int) ([]db.Message, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ?", matchID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC").
		Limit(limit).Offset(offset).
		Find(&msgs).Error
	return msgs, total, err
}

// LastN returns the most recent n messages of a match in chronological order.
func (r *MessageRepository) LastN(ctx context.Context, matchID string, n int) ([]db.Message, error) {
	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CountBySender counts messages authored by senderID across all matches.
func (r *MessageRepository) CountBySender(ctx context.Context, senderID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("sender_id = ?", senderID).
		Count(&count).Error
	return count, err
}

// CountByMatches returns the message count per match id.
func (r *MessageRepository) CountByMatches(ctx context.Context, matchIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		MatchID string
		N       int64
	}
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Select("match_id, COUNT(*) AS n").
		Where("match_id IN ?", matchIDs).
		Group("match_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.MatchID] = row.N
	}
	return out, nil
}

// Since returns messages created at or after since, newest first.
func (r *MessageRepository) Since(ctx context.Context, since time.Time, limit int) ([]db.Message, error) {
	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
