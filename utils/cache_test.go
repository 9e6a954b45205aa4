package utils

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, nil, 0)
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, ok := c.GetBytes(ctx, "k")
	assert.False(t, ok)

	c.SetJSON(ctx, "k", map[string]int{"a": 1})
	b, ok := c.GetBytes(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(b))
}

func TestCache_InvalidatePost(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.SetBytes(ctx, PostDetailCacheKey(1, 0), []byte("parent"))
	c.SetBytes(ctx, PostDetailCacheKey(1, 9), []byte("parent as 9"))
	c.SetBytes(ctx, PostDetailCacheKey(12, 0), []byte("similar id"))
	c.SetBytes(ctx, PostDetailCacheKey(2, 0), []byte("other"))
	c.SetBytes(ctx, TopicPostsCachePrefix(5)+"0:20:0", []byte("page"))
	c.SetBytes(ctx, TopicPostsCachePrefix(6)+"0:20:0", []byte("other topic"))

	require.NoError(t, c.InvalidatePost(ctx, 5, 1))

	_, ok := c.GetBytes(ctx, PostDetailCacheKey(1, 0))
	assert.False(t, ok)
	_, ok = c.GetBytes(ctx, PostDetailCacheKey(1, 9))
	assert.False(t, ok)
	_, ok = c.GetBytes(ctx, PostDetailCacheKey(12, 0))
	assert.True(t, ok)
	_, ok = c.GetBytes(ctx, TopicPostsCachePrefix(5)+"0:20:0")
	assert.False(t, ok)
	_, ok = c.GetBytes(ctx, PostDetailCacheKey(2, 0))
	assert.True(t, ok)
	_, ok = c.GetBytes(ctx, TopicPostsCachePrefix(6)+"0:20:0")
	assert.True(t, ok)
}
