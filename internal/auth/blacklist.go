// Package auth holds the access-token blacklist consulted by the request
// middleware and written on logout.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist records revoked access tokens until they would have expired
// anyway.
type TokenBlacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RedisBlacklist stores revoked token hashes with a TTL matching the token's
// remaining lifetime.
type RedisBlacklist struct {
	client *redis.Client
}

func NewRedisBlacklist(addr string) *RedisBlacklist {
	return &RedisBlacklist{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, blacklistKey(token), 1, ttl).Err()
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "token:blacklist:" + hex.EncodeToString(sum[:])
}

// NoopBlacklist is used when no redis address is configured; logout then
// relies on refresh-token revocation alone.
type NoopBlacklist struct{}

func (NoopBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	return nil
}

func (NoopBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	return false, nil
}
