package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "jwt:blacklist:"

// TokenBlacklist remembers revoked tokens until they expire. Redis is used
// when a client is given, process memory otherwise.
type TokenBlacklist struct {
	client redis.UniversalClient

	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewTokenBlacklist creates a blacklist. client may be nil.
func NewTokenBlacklist(client redis.UniversalClient) *TokenBlacklist {
	return &TokenBlacklist{client: client, revoked: map[string]time.Time{}}
}

// Revoke stores a token until expiresAt.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if b.client != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return b.client.Set(ctx, blacklistKeyPrefix+token, "1", ttl).Err()
	}
	b.mu.Lock()
	b.revoked[token] = expiresAt
	b.mu.Unlock()
	return nil
}

// IsRevoked checks if a token was revoked before natural expiration.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) bool {
	if b.client != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := b.client.Exists(ctx, blacklistKeyPrefix+token).Result()
		// fail open on Redis errors to avoid locking everyone out
		return err == nil && n > 0
	}

	b.mu.RLock()
	exp, ok := b.revoked[token]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		b.mu.Lock()
		delete(b.revoked, token)
		b.mu.Unlock()
		return false
	}
	return true
}
