package service

import (
	"context"
	"time"

	"github.com/storegrid/identity-service/internal/domain"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/repository"
	"github.com/storegrid/identity-service/internal/security"
)

// SessionService owns the session lifecycle: creation, hostname-bound
// validation with sliding renewal, revocation and expiry sweeps. A session
// is usable only on the exact hostname it was created for; any mismatch,
// expiry or missing owner deletes the record (fail closed).
type SessionService struct {
	sessions    repository.SessionRepository
	ttl         time.Duration
	renewWindow time.Duration
}

func NewSessionService(sessions repository.SessionRepository, ttl, renewWindow time.Duration) *SessionService {
	return &SessionService{sessions: sessions, ttl: ttl, renewWindow: renewWindow}
}

func (s *SessionService) TTL() time.Duration { return s.ttl }

// Create persists a new session for userID bound to hostname and returns
// it together with the bearer token. The token goes into the caller's
// cookie; only its hash is stored.
func (s *SessionService) Create(ctx context.Context, userID, hostname string, ttl time.Duration) (*domain.Session, string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	token := security.GenerateSessionToken()
	session := &domain.Session{
		ID:        security.SessionID(token),
		UserID:    userID,
		Hostname:  hostname,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", err
	}
	return session, token, nil
}

// Validate re-derives the session id from token and applies the
// invalidation checks in order. Semantic invalidity is the (nil, nil, nil)
// result, never an error; only storage failures return an error. A session
// accessed inside the renewal window is extended to a full TTL and
// flagged Fresh.
func (s *SessionService) Validate(ctx context.Context, token, hostname string) (*domain.User, *domain.Session, error) {
	session, user, err := s.sessions.FindWithUser(ctx, security.SessionID(token))
	if err != nil {
		if err == repository.ErrSessionNotFound {
			observability.RecordSessionValidation(ctx, "not_found")
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if session.Hostname != hostname {
		observability.RecordSessionValidation(ctx, "hostname_mismatch")
		return nil, nil, s.sessions.Delete(ctx, session.ID)
	}
	if user == nil {
		observability.RecordSessionValidation(ctx, "owner_missing")
		return nil, nil, s.sessions.Delete(ctx, session.ID)
	}
	now := time.Now()
	if !now.Before(session.ExpiresAt) {
		observability.RecordSessionValidation(ctx, "expired")
		return nil, nil, s.sessions.Delete(ctx, session.ID)
	}
	if session.ExpiresAt.Sub(now) <= s.renewWindow {
		session.ExpiresAt = now.Add(s.ttl)
		session.Fresh = true
		if err := s.sessions.UpdateExpiresAt(ctx, session.ID, session.ExpiresAt); err != nil {
			return nil, nil, err
		}
		observability.RecordSessionValidation(ctx, "fresh")
	} else {
		observability.RecordSessionValidation(ctx, "valid")
	}
	return user, session, nil
}

// Revoke deletes the session unconditionally; absent sessions are fine.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// PurgeExpired sweeps every session past its expiry. Meant for the
// periodic background task, not the request path.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, time.Now())
}
