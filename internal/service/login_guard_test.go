package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/storegrid/identity-service/internal/apperr"
)

func newGuardFixture(t *testing.T) (LoginGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLoginGuard(client), mr
}

func TestLoginGuardAllowsFreshAccount(t *testing.T) {
	guard, _ := newGuardFixture(t)
	if err := guard.Check(context.Background(), "a@example.com"); err != nil {
		t.Fatalf("fresh account must be allowed: %v", err)
	}
}

func TestLoginGuardThrottlesAfterRepeatedFailures(t *testing.T) {
	guard, _ := newGuardFixture(t)
	ctx := context.Background()
	for i := 0; i < loginGuardMaxFailures; i++ {
		if err := guard.Check(ctx, "a@example.com"); err != nil {
			t.Fatalf("failure %d should still be allowed: %v", i, err)
		}
		_ = guard.Fail(ctx, "a@example.com")
	}
	if err := guard.Check(ctx, "a@example.com"); !errors.Is(err, apperr.ErrTooManyTries) {
		t.Fatalf("expected throttle after %d failures, got %v", loginGuardMaxFailures, err)
	}
	// A different account is unaffected.
	if err := guard.Check(ctx, "b@example.com"); err != nil {
		t.Fatalf("other account must be allowed: %v", err)
	}
}

func TestLoginGuardResetClearsCounter(t *testing.T) {
	guard, _ := newGuardFixture(t)
	ctx := context.Background()
	for i := 0; i < loginGuardMaxFailures; i++ {
		_ = guard.Fail(ctx, "a@example.com")
	}
	if err := guard.Check(ctx, "a@example.com"); err == nil {
		t.Fatal("expected throttle before reset")
	}
	_ = guard.Reset(ctx, "a@example.com")
	if err := guard.Check(ctx, "a@example.com"); err != nil {
		t.Fatalf("reset must clear the counter: %v", err)
	}
}

func TestLoginGuardWindowExpiry(t *testing.T) {
	guard, mr := newGuardFixture(t)
	ctx := context.Background()
	for i := 0; i < loginGuardMaxFailures; i++ {
		_ = guard.Fail(ctx, "a@example.com")
	}
	mr.FastForward(loginGuardWindow + 1)
	if err := guard.Check(ctx, "a@example.com"); err != nil {
		t.Fatalf("counter must expire with the window: %v", err)
	}
}

func TestLoginGuardFailsOpenOnBackendOutage(t *testing.T) {
	guard, mr := newGuardFixture(t)
	mr.Close()
	if err := guard.Check(context.Background(), "a@example.com"); err != nil {
		t.Fatalf("backend outage must not lock accounts out: %v", err)
	}
}
