// Package uploads keeps track of which uploaded files each post references.
package uploads

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/store"
)

// URLPrefix is where uploaded files are served from.
const URLPrefix = "/static/uploads/"

var uploadRef = regexp.MustCompile(regexp.QuoteMeta(URLPrefix) + `[A-Za-z0-9._\-/]+`)

// ExtractURLs returns the distinct upload URLs in content in order of appearance.
func ExtractURLs(content string) []string {
	seen := map[string]bool{}
	var out []string
	for _, u := range uploadRef.FindAllString(content, -1) {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// Service reconciles post:<pid>:uploads with the post content.
type Service struct {
	db     *gorm.DB
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(gdb *gorm.DB, s store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: gdb, store: s, logger: logger, now: time.Now}
}

// Sync reads the stored content of pid, adds the uploads it references to the
// post's upload index, drops the ones it no longer references and marks the
// referenced files as attached so the cleaner keeps them.
func (s *Service) Sync(ctx context.Context, pid int64) error {
	fields, err := s.store.GetObjectFields(ctx, store.PostKey(pid), "content")
	if err != nil {
		return err
	}
	want := ExtractURLs(fields["content"])
	have, err := s.store.SortedSetRange(ctx, store.PostUploadsKey(pid), 0, -1)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(want))
	for _, u := range want {
		wanted[u] = true
	}
	var stale []string
	for _, u := range have {
		if !wanted[u] {
			stale = append(stale, u)
		}
		delete(wanted, u)
	}

	score := float64(s.now().UnixMilli())
	for _, u := range want {
		if !wanted[u] {
			continue
		}
		if err := s.store.SortedSetAdd(ctx, store.PostUploadsKey(pid), score, u); err != nil {
			return err
		}
	}
	if err := s.store.SortedSetRemove(ctx, store.PostUploadsKey(pid), stale...); err != nil {
		return err
	}

	if len(want) == 0 {
		return nil
	}
	tx := s.db.WithContext(ctx).Model(&models.UploadedFile{}).
		Where("url IN ? AND post_id = ?", want, 0).
		UpdateColumns(map[string]any{"post_id": pid, "expire_at": nil})
	if tx.Error != nil {
		return fmt.Errorf("attach uploads of post %d: %w", pid, tx.Error)
	}
	if tx.RowsAffected > 0 {
		s.logger.Debug("uploads attached", zap.Int64("pid", pid), zap.Int64("files", tx.RowsAffected))
	}
	return nil
}

// URLs returns the upload URLs indexed for pid.
func (s *Service) URLs(ctx context.Context, pid int64) ([]string, error) {
	return s.store.SortedSetRange(ctx, store.PostUploadsKey(pid), 0, -1)
}
