package revocations

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "revoked:"

// RedisClient is the subset of redis.Cmdable the ledger uses.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRepository keeps each revoked digest as a key whose TTL ends when
// the token would have expired anyway, so Purge has nothing to do.
type RedisRepository struct {
	client RedisClient
	now    func() time.Time
}

func NewRedisRepository(client RedisClient) *RedisRepository {
	return &RedisRepository{client: client, now: time.Now}
}

func (r *RedisRepository) Revoke(ctx context.Context, tokenHash string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := r.client.SetNX(ctx, redisKeyPrefix+tokenHash, expiresAt.Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return ok, nil
}

func (r *RedisRepository) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKeyPrefix+tokenHash).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n > 0, nil
}

// Purge is a no-op; Redis expires keys on its own.
func (r *RedisRepository) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}
