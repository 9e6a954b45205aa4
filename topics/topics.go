// Package topics keeps the per-topic side of new posts: the topic's post
// index and its counters.
package topics

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/store"
)

// Service wraps topic lookups and aggregates.
type Service struct {
	db     *gorm.DB
	store  store.Store
	logger *zap.Logger
}

// NewService creates a Service.
func NewService(gdb *gorm.DB, s store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: gdb, store: s, logger: logger}
}

// GetTopicFields returns the category and pinned flag of a live topic.
// Deleted topics are reported as missing.
func (s *Service) GetTopicFields(ctx context.Context, tid int64) (models.TopicFields, error) {
	var t models.Topic
	err := s.db.WithContext(ctx).
		Select("id", "category_id", "pinned").
		Where("id = ? AND deleted = ?", tid, false).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TopicFields{}, fmt.Errorf("tid %d: %w", tid, models.ErrTopicNotFound)
	}
	if err != nil {
		return models.TopicFields{}, err
	}
	return models.TopicFields{CategoryID: t.CategoryID, Pinned: t.Pinned}, nil
}

// OnNewPost indexes the post under its topic and bumps the topic counters.
func (s *Service) OnNewPost(ctx context.Context, post *models.Post) error {
	if err := s.store.SortedSetAdd(ctx, store.TopicPostsKey(post.TopicID), float64(post.Timestamp.UnixMilli()), store.Member(post.ID)); err != nil {
		return err
	}

	tx := s.db.WithContext(ctx).Model(&models.Topic{}).
		Where("id = ?", post.TopicID).
		UpdateColumn("post_count", gorm.Expr("post_count + ?", 1))
	if tx.Error != nil {
		return fmt.Errorf("topic %d post_count: %w", post.TopicID, tx.Error)
	}
	if tx.RowsAffected == 0 {
		s.logger.Warn("new post for unknown topic", zap.Int64("tid", post.TopicID), zap.Int64("pid", post.ID))
		return nil
	}

	// concurrent replies may finish out of order; keep the highest pid
	if err := s.db.WithContext(ctx).Model(&models.Topic{}).
		Where("id = ? AND last_post_id < ?", post.TopicID, post.ID).
		UpdateColumns(map[string]any{"last_post_id": post.ID, "last_post_at": post.Timestamp}).Error; err != nil {
		return fmt.Errorf("topic %d last post: %w", post.TopicID, err)
	}
	return nil
}

// PostIDs returns the pids of a topic oldest first, stop -1 meaning the end.
func (s *Service) PostIDs(ctx context.Context, tid, start, stop int64) ([]string, error) {
	return s.store.SortedSetRange(ctx, store.TopicPostsKey(tid), start, stop)
}
