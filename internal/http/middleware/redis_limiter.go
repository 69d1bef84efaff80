package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter counts in Redis so every replica draws from the same
// budget. Fixed window: INCR plus an expiry set on the first hit.
func NewRedisLimiter(client *redis.Client) Limiter {
	return &redisLimiter{client: client}
}

func (l *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	redisKey := "rate:" + key
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}
	count := incr.Val()
	remaining := ttl.Val()
	if remaining < 0 {
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return Decision{}, err
		}
		remaining = window
	}
	resetAt := time.Now().Add(remaining)
	if count > int64(limit) {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: remaining,
			ResetAt:    resetAt,
		}, nil
	}
	return Decision{
		Allowed:   true,
		Remaining: limit - int(count),
		ResetAt:   resetAt,
	}, nil
}
