package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 2 * time.Second

// Redis implements Store on a go-redis client. HINCRBY and ZADD are atomic on
// the server, which is what keeps ids unique across processes.
type Redis struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedis wraps an existing client. A zero timeout uses the 2s default.
func NewRedis(client redis.UniversalClient, timeout time.Duration) *Redis {
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Redis{client: client, timeout: timeout}
}

func (r *Redis) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, r.timeout)
}

// IncrObjectField runs HINCRBY key field 1.
func (r *Redis) IncrObjectField(ctx context.Context, key, field string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	n, err := r.client.HIncrBy(ctx, key, field, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("hincrby %s %s: %w", key, field, err)
	}
	return n, nil
}

// SetObject runs HSET with every field.
func (r *Redis) SetObject(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	values := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	if err := r.client.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// GetObject runs HGETALL.
func (r *Redis) GetObject(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	m, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return m, nil
}

// GetObjectFields runs HMGET and drops the fields that are not set.
func (r *Redis) GetObjectFields(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	if len(fields) == 0 {
		return out, nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	vals, err := r.client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget %s: %w", key, err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[fields[i]] = s
		}
	}
	return out, nil
}

// SortedSetAdd runs ZADD.
func (r *Redis) SortedSetAdd(ctx context.Context, key string, score float64, member string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("zadd %s: %w", key, err)
	}
	return nil
}

// SortedSetRemove runs ZREM.
func (r *Redis) SortedSetRemove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.client.ZRem(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("zrem %s: %w", key, err)
	}
	return nil
}

// SortedSetRange runs ZRANGE.
func (r *Redis) SortedSetRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	members, err := r.client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange %s: %w", key, err)
	}
	return members, nil
}

// SortedSetScore runs ZSCORE.
func (r *Redis) SortedSetScore(ctx context.Context, key, member string) (float64, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	score, err := r.client.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("zscore %s: %w", key, err)
	}
	return score, true, nil
}
