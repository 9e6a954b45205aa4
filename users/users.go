// Package users keeps per-user post history and counters.
package users

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/store"
)

// ErrUserNotFound is returned by lookups of unknown uids.
var ErrUserNotFound = errors.New("user not found")

// Service wraps user aggregates.
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

// OnNewPost records the post in its author's history. Posts stored without
// an author (guests, anonymous posts) are not attributed to anyone.
func (s *Service) OnNewPost(ctx context.Context, post *models.Post) error {
	if post.UID == models.AnonymousUID {
		return nil
	}
	if err := s.store.SortedSetAdd(ctx, store.UserPostsKey(post.UID), float64(post.Timestamp.UnixMilli()), store.Member(post.ID)); err != nil {
		return err
	}
	ts := post.Timestamp
	tx := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", post.UID).
		UpdateColumns(map[string]any{
			"post_count":   gorm.Expr("post_count + ?", 1),
			"last_post_at": &ts,
		})
	if tx.Error != nil {
		return fmt.Errorf("user %d post_count: %w", post.UID, tx.Error)
	}
	if tx.RowsAffected == 0 {
		s.logger.Warn("new post by unknown user", zap.Int64("uid", post.UID), zap.Int64("pid", post.ID))
	}
	return nil
}

// Username returns the username of uid.
func (s *Service) Username(ctx context.Context, uid int64) (string, error) {
	var u models.User
	err := s.db.WithContext(ctx).Select("id", "username").First(&u, uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// PostIDs returns the pids of uid's posts oldest first.
func (s *Service) PostIDs(ctx context.Context, uid, start, stop int64) ([]string, error) {
	return s.store.SortedSetRange(ctx, store.UserPostsKey(uid), start, stop)
}
