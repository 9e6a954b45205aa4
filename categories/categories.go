// Package categories maintains category-level post indexes and moderators.
package categories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/store"
)

// FieldPostCount is the counter field of category:<cid>.
const FieldPostCount = "post_count"

// Service wraps category aggregates.
type Service struct {
	db    *gorm.DB
	store store.Store
}

// NewService creates a Service.
func NewService(gdb *gorm.DB, s store.Store) *Service {
	return &Service{db: gdb, store: s}
}

// OnNewPost indexes post under cid, counts it and, unless the topic is
// pinned, moves the topic to the front of the category's recent list.
// Pinned topics keep their own ordering. cid 0 is a post outside any category.
func (s *Service) OnNewPost(ctx context.Context, cid int64, pinned bool, post *models.Post) error {
	if cid == 0 {
		return nil
	}
	score := float64(post.Timestamp.UnixMilli())
	if err := s.store.SortedSetAdd(ctx, store.CategoryPostsKey(cid), score, store.Member(post.ID)); err != nil {
		return err
	}
	if _, err := s.store.IncrObjectField(ctx, store.CategoryKey(cid), FieldPostCount); err != nil {
		return err
	}
	if pinned {
		return nil
	}
	return s.store.SortedSetAdd(ctx, store.CategoryTopicsKey(cid), score, store.Member(post.TopicID))
}

// IsModerator reports whether uid moderates cid.
func (s *Service) IsModerator(ctx context.Context, cid, uid int64) (bool, error) {
	if cid == 0 || uid <= 0 {
		return false, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.CategoryModerator{}).
		Where("category_id = ? AND user_id = ?", cid, uid).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("category %d moderators: %w", cid, err)
	}
	return n > 0, nil
}

// AddModerator grants uid moderation of cid. Granting twice is a no-op.
func (s *Service) AddModerator(ctx context.Context, cid, uid int64) error {
	ok, err := s.IsModerator(ctx, cid, uid)
	if err != nil || ok {
		return err
	}
	return s.db.WithContext(ctx).Create(&models.CategoryModerator{CategoryID: cid, UserID: uid}).Error
}
