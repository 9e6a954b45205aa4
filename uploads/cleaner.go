package uploads

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/postcore/models"
)

// Cleaner deletes expired uploads that no post references.
type Cleaner struct {
	db       *gorm.DB
	logger   *zap.Logger
	interval time.Duration
	batch    int
}

// NewCleaner creates a Cleaner running every interval (5 minutes when zero).
func NewCleaner(gdb *gorm.DB, logger *zap.Logger, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{db: gdb, logger: logger, interval: interval, batch: 100}
}

// Run cleans on every tick until ctx is done.
func (c *Cleaner) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if _, err := c.CleanOnce(ctx, now); err != nil {
				c.logger.Warn("upload cleaner failed", zap.Error(err))
			}
		}
	}
}

// CleanOnce removes one batch of expired, unattached files and returns how many
// rows were deleted. A file that is already gone does not keep its row.
func (c *Cleaner) CleanOnce(ctx context.Context, now time.Time) (int, error) {
	var items []models.UploadedFile
	if err := c.db.WithContext(ctx).
		Where("post_id = ? AND expire_at IS NOT NULL AND expire_at <= ?", 0, now).
		Limit(c.batch).
		Find(&items).Error; err != nil {
		return 0, err
	}
	removed := 0
	for _, it := range items {
		// a post may have attached the file since the query
		tx := c.db.WithContext(ctx).Where("id = ? AND post_id = ?", it.ID, 0).Delete(&models.UploadedFile{})
		if tx.Error != nil {
			c.logger.Warn("upload cleaner delete row failed", zap.Uint("id", it.ID), zap.Error(tx.Error))
			continue
		}
		if tx.RowsAffected == 0 {
			continue
		}
		removed++
		if it.FilePath != "" {
			if err := os.Remove(it.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				c.logger.Warn("upload cleaner remove file failed", zap.String("path", it.FilePath), zap.Error(err))
			}
		}
	}
	return removed, nil
}

// Track records a freshly stored file that expires unless a post references it
// within ttl. A zero ttl keeps the file forever.
func Track(ctx context.Context, gdb *gorm.DB, path, url string, ttl time.Duration) (*models.UploadedFile, error) {
	f := &models.UploadedFile{FilePath: path, URL: url}
	if ttl != 0 {
		exp := time.Now().Add(ttl)
		f.ExpireAt = &exp
	}
	if err := gdb.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}
