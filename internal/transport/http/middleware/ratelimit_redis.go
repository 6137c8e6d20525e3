package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counter is the slice of redis.Cmdable the fixed-window limiter needs.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisRateLimiter is a fixed-window counter shared by every api instance.
type RedisRateLimiter struct {
	client counter
	prefix string
	limit  int64
	window time.Duration
}

func NewRedisRateLimiter(client counter, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: prefix, limit: int64(limit), window: window}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)
	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", redisKey, err)
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", redisKey, err)
		}
	}
	return count <= rl.limit, nil
}
