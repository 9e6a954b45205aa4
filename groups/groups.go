// Package groups indexes posts made by members of each user group.
package groups

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/store"
)

// Service wraps group membership and the per-group post indexes.
type Service struct {
	db    *gorm.DB
	store store.Store
}

// NewService creates a Service.
func NewService(gdb *gorm.DB, s store.Store) *Service {
	return &Service{db: gdb, store: s}
}

// Join adds uid to group. Joining twice is a no-op.
func (s *Service) Join(ctx context.Context, group string, uid int64) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.GroupMember{GroupName: group, UserID: uid}).Error
}

// GroupsOf returns the names of uid's groups.
func (s *Service) GroupsOf(ctx context.Context, uid int64) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("user_id = ?", uid).
		Order("group_name").
		Pluck("group_name", &names).Error; err != nil {
		return nil, fmt.Errorf("groups of %d: %w", uid, err)
	}
	return names, nil
}

// OnNewPost adds the post to the index of every group its stored author is in.
func (s *Service) OnNewPost(ctx context.Context, post *models.Post) error {
	if post.UID == models.AnonymousUID {
		return nil
	}
	names, err := s.GroupsOf(ctx, post.UID)
	if err != nil {
		return err
	}
	score := float64(post.Timestamp.UnixMilli())
	for _, name := range names {
		if err := s.store.SortedSetAdd(ctx, store.GroupPostsKey(name), score, store.Member(post.ID)); err != nil {
			return err
		}
	}
	return nil
}
