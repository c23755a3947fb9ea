package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/utils/pagination"
)

// SwipeRepository is the append-only swipe ledger.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// Create records swiper → swiped.
//
// Behavior:
//   - The composite PK (swiper_id, swiped_id) rejects a second swipe on the
//     same ordered pair; the collision is returned as ErrDuplicate.
//   - Rows are never overwritten, so a pass can't be turned into a like.
//
// Example:
//
//	repo.Create(ctx, &db.Swipe{SwiperID: a, SwipedID: b, Direction: db.DirectionLike})
func (r *SwipeRepository) Create(ctx context.Context, s *db.Swipe) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// HasLiked checks whether swiper has liked swiped.
//
// Example:
//
//	repo.HasLiked(ctx, a, b) // -> true if a liked b
func (r *SwipeRepository) HasLiked(ctx context.Context, swiperID, swipedID string) (bool, error) {
	return r.hasSwiped(ctx, swiperID, swipedID, db.DirectionLike)
}

// HasPassed checks whether swiper has passed on swiped.
func (r *SwipeRepository) HasPassed(ctx context.Context, swiperID, swipedID string) (bool, error) {
	return r.hasSwiped(ctx, swiperID, swipedID, db.DirectionPass)
}

func (r *SwipeRepository) hasSwiped(ctx context.Context, swiperID, swipedID string, dir db.Direction) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("swiper_id = ? AND swiped_id = ? AND direction = ?", swiperID, swipedID, dir).
		Count(&count).Error
	return count > 0, err
}

// GetLikers returns swipes of agents who liked the given recipient.
//
// Behavior:
//   - Only like swipes where swiped_id = X are returned.
//   - Excludes agents that the recipient explicitly passed.
//   - Ordered by created_at DESC, swiper_id DESC.
//   - Supports cursor-based pagination via paginationToken.
func (r *SwipeRepository) GetLikers(
	ctx context.Context,
	recipientID string,
	paginationToken *string,
	limit int,
) ([]db.Swipe, *string, error) {
	query := r.db.WithContext(ctx).
		Table("swipes s").
		Where("s.swiped_id = ? AND s.direction = ?", recipientID, db.DirectionLike).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes s2
				WHERE s2.swiper_id = ?
				  AND s2.swiped_id = s.swiper_id
				  AND s2.direction = ?
			)`, recipientID, db.DirectionPass)

	return r.pageLikers(query, paginationToken, limit)
}

// GetNewLikers returns likers the recipient has not swiped on at all yet.
//
// Behavior:
//   - Excludes mutual likes (recipient already liked them back).
//   - Excludes agents the recipient explicitly passed.
//   - Same ordering and pagination as GetLikers.
func (r *SwipeRepository) GetNewLikers(
	ctx context.Context,
	recipientID string,
	paginationToken *string,
	limit int,
) ([]db.Swipe, *string, error) {
	query := r.db.WithContext(ctx).
		Table("swipes s").
		Where("s.swiped_id = ? AND s.direction = ?", recipientID, db.DirectionLike).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes s2
				WHERE s2.swiper_id = ?
				  AND s2.swiped_id = s.swiper_id
			)`, recipientID)

	return r.pageLikers(query, paginationToken, limit)
}

func (r *SwipeRepository) pageLikers(query *gorm.DB, paginationToken *string, limit int) ([]db.Swipe, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where(
			"(s.created_at < ? OR (s.created_at = ? AND s.swiper_id < ?))",
			ts, ts, cursor.SwiperID,
		)
	}

	var swipes []db.Swipe
	if err := query.
		Select("s.*").
		Order("s.created_at DESC, s.swiper_id DESC").
		Limit(limit + 1).
		Find(&swipes).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(swipes) > limit {
		last := swipes[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			SwiperID:    last.SwiperID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		swipes = swipes[:limit]
	}

	return swipes, nextToken, nil
}

// CountLikers returns how many agents liked the recipient, minus the ones it passed.
// Used in conjunction with the Redis counter (DB is fallback).
func (r *SwipeRepository) CountLikers(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("swipes s").
		Where("s.swiped_id = ? AND s.direction = ?", recipientID, db.DirectionLike).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes s2
				WHERE s2.swiper_id = ?
				  AND s2.swiped_id = s.swiper_id
				  AND s2.direction = ?
			)`, recipientID, db.DirectionPass).
		Count(&count).Error
	return count, err
}

// SwipedIDs lists every agent swiperID has swiped on, in either direction.
func (r *SwipeRepository) SwipedIDs(ctx context.Context, swiperID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("swiper_id = ?", swiperID).
		Pluck("swiped_id", &ids).Error
	return ids, err
}

// SwipeCounts holds like/total counts for one swiper.
type SwipeCounts struct {
	Likes int64
	Total int64
}

// CountBySwiper counts swipes given by swiperID.
func (r *SwipeRepository) CountBySwiper(ctx context.Context, swiperID string) (SwipeCounts, error) {
	var rows []struct {
		Direction db.Direction
		N         int64
	}
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Select("direction, COUNT(*) AS n").
		Where("swiper_id = ?", swiperID).
		Group("direction").
		Scan(&rows).Error
	if err != nil {
		return SwipeCounts{}, err
	}
	var c SwipeCounts
	for _, row := range rows {
		c.Total += row.N
		if row.Direction == db.DirectionLike {
			c.Likes += row.N
		}
	}
	return c, nil
}

// ListBySwiper returns swipes given by swiperID, newest first.
func (r *SwipeRepository) ListBySwiper(ctx context.Context, swiperID string, limit int) ([]db.Swipe, error) {
	var swipes []db.Swipe
	err := r.db.WithContext(ctx).
		Where("swiper_id = ?", swiperID).
		Order("created_at DESC").
		Limit(limit).
		Find(&swipes).Error
	return swipes, err
}

// ListBySwiped returns swipes received by swipedID, newest first.
func (r *SwipeRepository) ListBySwiped(ctx context.Context, swipedID string, limit int) ([]db.Swipe, error) {
	var swipes []db.Swipe
	err := r.db.WithContext(ctx).
		Where("swiped_id = ?", swipedID).
		Order("created_at DESC").
		Limit(limit).
		Find(&swipes).Error
	return swipes, err
}

// Since returns swipes created at or after since, newest first.
func (r *SwipeRepository) Since(ctx context.Context, since time.Time, limit int) ([]db.Swipe, error) {
	var swipes []db.Swipe
	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Limit(limit).
		Find(&swipes).Error
	return swipes, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
