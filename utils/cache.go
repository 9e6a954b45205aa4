package utils

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// Default cache ttl set to 3600 seconds
	defaultCacheTTL = time.Hour
	cacheOpTimeout  = 2 * time.Second
)

// PostDetailCachePrefix prefixes every cached view of one post.
func PostDetailCachePrefix(pid int64) string {
	return "cache:post:detail:" + strconv.FormatInt(pid, 10) + ":"
}

// PostDetailCacheKey caches the GET /posts/:pid body as seen by uid. Get
// filters receive the viewer, so views are never shared across users.
func PostDetailCacheKey(pid, uid int64) string {
	return PostDetailCachePrefix(pid) + strconv.FormatInt(uid, 10)
}

// TopicPostsCachePrefix prefixes every cached page of a topic's post list.
func TopicPostsCachePrefix(tid int64) string {
	return "cache:topic:" + strconv.FormatInt(tid, 10) + ":posts:"
}

// Cache is a small read-through helper over Redis strings.
type Cache struct {
	client redis.UniversalClient
	logger *zap.Logger
	ttl    time.Duration
}

// NewCache creates a Cache. A zero ttl uses one hour.
func NewCache(client redis.UniversalClient, logger *zap.Logger, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{client: client, logger: logger, ttl: ttl}
}

// GetBytes returns cached bytes for a key.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		c.logger.Debug("cache get miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return b, true
}

// SetBytes stores bytes with the cache ttl.
func (c *Cache) SetBytes(ctx context.Context, key string, b []byte) {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// SetJSON marshals v and stores JSON bytes.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.SetBytes(ctx, key, b)
}

// Delete removes exact keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	return c.client.Del(ctx, keys...).Err()
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := c.client.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			return err
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.client.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
		}
		if cursor == 0 {
			break
		}
	}
	return nil
}

// InvalidatePost drops what a new post makes stale: the parent's detail
// (its reply count changed) and the cached pages of the topic.
func (c *Cache) InvalidatePost(ctx context.Context, tid, parentPid int64) error {
	if parentPid > 0 {
		if err := c.InvalidateByPrefix(ctx, PostDetailCachePrefix(parentPid)); err != nil {
			return err
		}
	}
	return c.InvalidateByPrefix(ctx, TopicPostsCachePrefix(tid))
}
