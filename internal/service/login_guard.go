package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storegrid/identity-service/internal/apperr"
)

// LoginGuard throttles repeated credential failures per account. Check is
// called before verifying a password; Fail and Reset report the outcome.
type LoginGuard interface {
	Check(ctx context.Context, email string) error
	Fail(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

const (
	loginGuardMaxFailures = 10
	loginGuardWindow      = 15 * time.Minute
)

type redisLoginGuard struct {
	client *redis.Client
}

// NewRedisLoginGuard tracks failure counts in Redis with a sliding
// cooldown window. Redis outages fail open with a warning; a cache outage
// should not lock everyone out.
func NewRedisLoginGuard(client *redis.Client) LoginGuard {
	return &redisLoginGuard{client: client}
}

func loginGuardKey(email string) string {
	return fmt.Sprintf("login_guard:%s", email)
}

func (g *redisLoginGuard) Check(ctx context.Context, email string) error {
	count, err := g.client.Get(ctx, loginGuardKey(email)).Int64()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		slog.WarnContext(ctx, "login guard check failed, allowing", "error", err)
		return nil
	}
	if count >= loginGuardMaxFailures {
		return apperr.ErrTooManyTries
	}
	return nil
}

func (g *redisLoginGuard) Fail(ctx context.Context, email string) error {
	key := loginGuardKey(email)
	pipe := g.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, loginGuardWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.WarnContext(ctx, "login guard record failed", "error", err)
	}
	return nil
}

func (g *redisLoginGuard) Reset(ctx context.Context, email string) error {
	if err := g.client.Del(ctx, loginGuardKey(email)).Err(); err != nil {
		slog.WarnContext(ctx, "login guard reset failed", "error", err)
	}
	return nil
}

// NoopLoginGuard never throttles. Used when Redis is not configured.
type NoopLoginGuard struct{}

func (NoopLoginGuard) Check(context.Context, string) error { return nil }
func (NoopLoginGuard) Fail(context.Context, string) error  { return nil }
func (NoopLoginGuard) Reset(context.Context, string) error { return nil }
