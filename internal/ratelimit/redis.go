package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisCounter implements Counter on a Redis sorted set per credential,
// giving a cluster-wide sliding window. Admissions are members scored
// by nanosecond timestamp; each TryAdmit prunes entries older than the
// window before counting.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter creates a RedisCounter from a Redis URL.
func NewRedisCounter(redisURL string) (*RedisCounter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCounter{client: redis.NewClient(opts)}, nil
}

func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}

func (c *RedisCounter) TryAdmit(ctx context.Context, credential string, limit int, window time.Duration) (bool, error) {
	key := admitKey(credential)
	now := time.Now()
	member := uuid.NewString()

	pipe := c.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if card.Val() > int64(limit) {
		// Over the cap: withdraw our own entry so a rejected attempt
		// does not consume window budget.
		if err := c.client.ZRem(ctx, key, member).Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// admitKey hashes the credential so raw provider API keys never land in
// Redis.
func admitKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return fmt.Sprintf("ratelimit:%s", hex.EncodeToString(sum[:8]))
}
