package service

import (
	"context"
	"testing"
	"time"

	"github.com/storegrid/identity-service/internal/domain"
	"github.com/storegrid/identity-service/internal/security"
)

const (
	testTTL         = 30 * 24 * time.Hour
	testRenewWindow = 15 * 24 * time.Hour
)

func newSessionFixture(t *testing.T) (*SessionService, *memUserRepo, *memSessionRepo, *domain.User) {
	t.Helper()
	users := newMemUserRepo()
	sessions := newMemSessionRepo(users)
	user := &domain.User{ID: "user-1", Email: "u@example.com", IsEmailVerified: true}
	users.add(user)
	return NewSessionService(sessions, testTTL, testRenewWindow), users, sessions, user
}

func TestSessionCreateAndValidate(t *testing.T) {
	svc, _, _, user := newSessionFixture(t)
	ctx := context.Background()

	session, token, err := svc.Create(ctx, user.ID, "app.example.com", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if session.ID != security.SessionID(token) {
		t.Fatal("session id must be the token hash")
	}

	gotUser, gotSession, err := svc.Validate(ctx, token, "app.example.com")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if gotUser == nil || gotUser.ID != user.ID {
		t.Fatalf("unexpected user: %+v", gotUser)
	}
	if gotSession.Fresh {
		t.Fatal("session far from expiry must not be renewed")
	}
}

func TestSessionValidateUnknownToken(t *testing.T) {
	svc, _, _, _ := newSessionFixture(t)
	user, session, err := svc.Validate(context.Background(), security.GenerateSessionToken(), "app.example.com")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if user != nil || session != nil {
		t.Fatal("unknown token must validate to nil, not an error")
	}
}

func TestSessionHostnameMismatchDeletes(t *testing.T) {
	svc, _, repo, user := newSessionFixture(t)
	ctx := context.Background()
	_, token, err := svc.Create(ctx, user.ID, "app.example.com", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gotUser, _, err := svc.Validate(ctx, token, "evil.example.com")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if gotUser != nil {
		t.Fatal("mismatched hostname must not validate")
	}
	if repo.count() != 0 {
		t.Fatal("mismatched session must be deleted")
	}
	// Even the right hostname cannot use it afterwards.
	if gotUser, _, _ = svc.Validate(ctx, token, "app.example.com"); gotUser != nil {
		t.Fatal("deleted session must stay invalid")
	}
}

func TestSessionMissingOwnerDeletes(t *testing.T) {
	svc, _, repo, _ := newSessionFixture(t)
	ctx := context.Background()
	_, token, err := svc.Create(ctx, "ghost-user", "app.example.com", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gotUser, _, err := svc.Validate(ctx, token, "app.example.com")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if gotUser != nil {
		t.Fatal("session without owner must not validate")
	}
	if repo.count() != 0 {
		t.Fatal("orphaned session must be deleted")
	}
}

func TestSessionExpiredDeletes(t *testing.T) {
	svc, _, repo, user := newSessionFixture(t)
	ctx := context.Background()
	token := security.GenerateSessionToken()
	repo.Create(ctx, &domain.Session{
		ID:        security.SessionID(token),
		UserID:    user.ID,
		Hostname:  "app.example.com",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	gotUser, _, err := svc.Validate(ctx, token, "app.example.com")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if gotUser != nil {
		t.Fatal("expired session must not validate")
	}
	if repo.count() != 0 {
		t.Fatal("expired session must be deleted")
	}
}

func TestSessionRenewalInsideWindow(t *testing.T) {
	svc, _, repo, user := newSessionFixture(t)
	ctx := context.Background()

	// 14 days of life left: inside the 15-day renewal window.
	token := security.GenerateSessionToken()
	repo.Create(ctx, &domain.Session{
		ID:        security.SessionID(token),
		UserID:    user.ID,
		Hostname:  "app.example.com",
		ExpiresAt: time.Now().Add(14 * 24 * time.Hour),
	})
	before := time.Now()
	_, session, err := svc.Validate(ctx, token, "app.example.com")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !session.Fresh {
		t.Fatal("session inside renewal window must be marked fresh")
	}
	if session.ExpiresAt.Before(before.Add(testTTL - time.Minute)) {
		t.Fatalf("expiry must be extended to a full TTL, got %v", session.ExpiresAt)
	}

	// The stored record was extended too.
	stored, _, err := repo.FindWithUser(ctx, session.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.ExpiresAt.Before(before.Add(testTTL - time.Minute)) {
		t.Fatal("persisted expiry must match the renewed one")
	}
}

func TestSessionNoRenewalOutsideWindow(t *testing.T) {
	svc, _, repo, user := newSessionFixture(t)
	ctx := context.Background()

	// 20 days of life left: outside the 15-day window.
	token := security.GenerateSessionToken()
	expires := time.Now().Add(20 * 24 * time.Hour)
	repo.Create(ctx, &domain.Session{
		ID:        security.SessionID(token),
		UserID:    user.ID,
		Hostname:  "app.example.com",
		ExpiresAt: expires,
	})
	_, session, err := svc.Validate(ctx, token, "app.example.com")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if session.Fresh {
		t.Fatal("session outside renewal window must not be renewed")
	}
	if !session.ExpiresAt.Equal(expires) {
		t.Fatalf("expiry must be unchanged, got %v want %v", session.ExpiresAt, expires)
	}
}

func TestSessionRevokeIsIdempotent(t *testing.T) {
	svc, _, _, user := newSessionFixture(t)
	ctx := context.Background()
	session, token, err := svc.Create(ctx, user.ID, "app.example.com", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Revoke(ctx, session.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := svc.Revoke(ctx, session.ID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if gotUser, _, _ := svc.Validate(ctx, token, "app.example.com"); gotUser != nil {
		t.Fatal("revoked session must not validate")
	}
}

func TestPurgeExpired(t *testing.T) {
	svc, _, repo, user := newSessionFixture(t)
	ctx := context.Background()
	repo.Create(ctx, &domain.Session{ID: "expired-1", UserID: user.ID, Hostname: "a", ExpiresAt: time.Now().Add(-time.Hour)})
	repo.Create(ctx, &domain.Session{ID: "expired-2", UserID: user.ID, Hostname: "a", ExpiresAt: time.Now().Add(-time.Minute)})
	repo.Create(ctx, &domain.Session{ID: "live", UserID: user.ID, Hostname: "a", ExpiresAt: time.Now().Add(time.Hour)})

	purged, err := svc.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 2 {
		t.Fatalf("purged %d, want 2", purged)
	}
	if repo.count() != 1 {
		t.Fatalf("remaining %d, want 1", repo.count())
	}
}
