// Package storetest provides Redis-backed stores for tests.
package storetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cppla/postcore/store"
)

// New starts an in-process Redis server for the duration of the test.
func New(t *testing.T) (*store.Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return store.NewRedis(client, 0), srv
}

// ErrInjected is returned by Faulty for matching operations.
var ErrInjected = errors.New("storetest: injected failure")

// Faulty wraps a Store and fails writes whose key has one of the configured prefixes.
type Faulty struct {
	store.Store

	mu       sync.Mutex
	prefixes []string
	ops      map[string]bool
}

// NewFaulty wraps s. Nothing fails until FailOn is called.
func NewFaulty(s store.Store) *Faulty {
	return &Faulty{Store: s, ops: map[string]bool{}}
}

// FailOn makes op ("incr", "set", "zadd", "zrem") fail on keys starting with prefix.
func (f *Faulty) FailOn(op, prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes = append(f.prefixes, op+"|"+prefix)
	f.ops[op] = true
}

func (f *Faulty) fails(op, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ops[op] {
		return false
	}
	for _, p := range f.prefixes {
		o, prefix, _ := strings.Cut(p, "|")
		if o == op && strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func (f *Faulty) IncrObjectField(ctx context.Context, key, field string) (int64, error) {
	if f.fails("incr", key) {
		return 0, ErrInjected
	}
	return f.Store.IncrObjectField(ctx, key, field)
}

func (f *Faulty) SetObject(ctx context.Context, key string, fields map[string]string) error {
	if f.fails("set", key) {
		return ErrInjected
	}
	return f.Store.SetObject(ctx, key, fields)
}

func (f *Faulty) SortedSetAdd(ctx context.Context, key string, score float64, member string) error {
	if f.fails("zadd", key) {
		return ErrInjected
	}
	return f.Store.SortedSetAdd(ctx, key, score, member)
}

func (f *Faulty) SortedSetRemove(ctx context.Context, key string, members ...string) error {
	if f.fails("zrem", key) {
		return ErrInjected
	}
	return f.Store.SortedSetRemove(ctx, key, members...)
}
