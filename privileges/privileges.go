// Package privileges answers who may see what.
package privileges

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/cppla/postcore/store"
	"github.com/cppla/postcore/users"
)

// UserDirectory resolves uids to usernames.
type UserDirectory interface {
	Username(ctx context.Context, uid int64) (string, error)
}

// Moderators tells whether a user moderates a category.
type Moderators interface {
	IsModerator(ctx context.Context, cid, uid int64) (bool, error)
}

// Service evaluates post privileges. Admins are matched by username.
type Service struct {
	store      store.Store
	users      UserDirectory
	moderators Moderators
	isAdmin    func(username string) bool
}

// NewService creates a Service. isAdmin may be nil when there are no admins.
func NewService(s store.Store, u UserDirectory, m Moderators, isAdmin func(string) bool) *Service {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &Service{store: s, users: u, moderators: m, isAdmin: isAdmin}
}

// CanViewDeleted is posts:view_deleted: admins anywhere, moderators within the
// post's category. Guests never qualify.
func (s *Service) CanViewDeleted(ctx context.Context, pid, uid int64) (bool, error) {
	if uid <= 0 {
		return false, nil
	}

	var (
		g        errgroup.Group
		username string
		cid      int64
	)
	g.Go(func() error {
		name, err := s.users.Username(ctx, uid)
		if errors.Is(err, users.ErrUserNotFound) {
			return nil
		}
		username = name
		return err
	})
	g.Go(func() error {
		fields, err := s.store.GetObjectFields(ctx, store.PostKey(pid), "cid")
		if err != nil {
			return err
		}
		if raw := fields["cid"]; raw != "" {
			if cid, err = strconv.ParseInt(raw, 10, 64); err != nil {
				return fmt.Errorf("post %d cid: %w", pid, err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	if username != "" && s.isAdmin(username) {
		return true, nil
	}
	return s.moderators.IsModerator(ctx, cid, uid)
}
