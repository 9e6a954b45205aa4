package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/postcore/store"
	"github.com/cppla/postcore/store/storetest"
)

func TestRedis_IncrObjectFieldIsAtomic(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()

	const n = 50
	seen := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.IncrObjectField(ctx, store.GlobalKey, store.FieldNextPid)
			assert.NoError(t, err)
			seen <- v
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for v := range seen {
		assert.False(t, unique[v], "value %d issued twice", v)
		unique[v] = true
	}
	assert.Len(t, unique, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, unique[i], "missing %d", i)
	}
}

func TestRedis_ObjectRoundTrip(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()

	require.NoError(t, s.SetObject(ctx, "post:1", map[string]string{"pid": "1", "content": "hi"}))

	all, err := s.GetObject(ctx, "post:1")
	require.NoError(t, err)
	assert.Equal(t, "hi", all["content"])

	some, err := s.GetObjectFields(ctx, "post:1", "pid", "deleted")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pid": "1"}, some)

	missing, err := s.GetObjectFields(ctx, "post:2", "pid")
	require.NoError(t, err)
	assert.Empty(t, missing)

	_, err = s.GetObject(ctx, "post:2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedis_SortedSets(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()

	require.NoError(t, s.SortedSetAdd(ctx, "z", 20, "b"))
	require.NoError(t, s.SortedSetAdd(ctx, "z", 10, "a"))
	require.NoError(t, s.SortedSetAdd(ctx, "z", 30, "c"))

	members, err := s.SortedSetRange(ctx, "z", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, members)

	score, ok, err := s.SortedSetScore(ctx, "z", "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float64(20), score)

	require.NoError(t, s.SortedSetRemove(ctx, "z", "b"))
	_, ok, err = s.SortedSetScore(ctx, "z", "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFaulty_FailsOnlyMatchingKeys(t *testing.T) {
	s, _ := storetest.New(t)
	f := storetest.NewFaulty(s)
	f.FailOn("zadd", "uid:")
	ctx := context.Background()

	assert.ErrorIs(t, f.SortedSetAdd(ctx, "uid:1:posts", 1, "1"), storetest.ErrInjected)
	assert.NoError(t, f.SortedSetAdd(ctx, "tid:1:posts", 1, "1"))
}
