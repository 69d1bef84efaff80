package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/security"
)

// crossDomainPayload is the sealed single-use code handed between hosts.
// The embedded temporary session is what makes the code single-use: it is
// deleted at redemption, so a replayed code fails session validation even
// inside the code's lifetime.
type crossDomainPayload struct {
	UserID       string    `json:"userId"`
	SessionToken string    `json:"sessionToken"`
	SessionID    string    `json:"sessionId"`
	Turnstile    string    `json:"turnstile"`
	Nonce        string    `json:"nonce"`
	IssuedAt     time.Time `json:"issuedAt"`
	SourceHost   string    `json:"sourceHost"`
	TargetHost   string    `json:"targetHost"`
}

// CrossDomainService propagates an authenticated session from the
// canonical auth host to a partner host through a sealed, single-use,
// host-pinned code.
type CrossDomainService struct {
	sessions     *SessionService
	codec        *security.Codec
	turnstile    TurnstileVerifier
	authHostname string
	isPartner    func(string) bool
	ttl          time.Duration
}

func NewCrossDomainService(sessions *SessionService, codec *security.Codec, turnstile TurnstileVerifier, authHostname string, isPartner func(string) bool, ttl time.Duration) *CrossDomainService {
	if ttl <= 0 {
		ttl = security.DefaultTokenTTL
	}
	return &CrossDomainService{
		sessions:     sessions,
		codec:        codec,
		turnstile:    turnstile,
		authHostname: authHostname,
		isPartner:    isPartner,
		ttl:          ttl,
	}
}

// Issue mints a code for an already-authenticated user on the auth host
// and returns the callback URL on the target host. The code wraps a
// temporary session bound to the target, so the code is only redeemable
// there.
func (s *CrossDomainService) Issue(ctx context.Context, userID, targetHost, turnstileToken, redirectURL string) (string, error) {
	if !s.isPartner(targetHost) {
		observability.RecordCrossDomainEvent(ctx, "issue", "unknown_target")
		return "", apperr.ErrHostMismatch
	}
	if err := validateRedirectURL(redirectURL, targetHost); err != nil {
		observability.RecordCrossDomainEvent(ctx, "issue", "bad_redirect")
		return "", err
	}
	tempSession, tempToken, err := s.sessions.Create(ctx, userID, targetHost, s.ttl)
	if err != nil {
		return "", err
	}
	code, err := s.codec.Seal(security.PurposeCrossDomainCode, crossDomainPayload{
		UserID:       userID,
		SessionToken: tempToken,
		SessionID:    tempSession.ID,
		Turnstile:    turnstileToken,
		Nonce:        security.GenerateSessionToken(),
		IssuedAt:     time.Now(),
		SourceHost:   s.authHostname,
		TargetHost:   targetHost,
	}, s.ttl)
	if err != nil {
		return "", err
	}
	observability.RecordCrossDomainEvent(ctx, "issue", "success")
	return fmt.Sprintf("https://%s/__p_auth/api/cross_domain/callback?code=%s&redirectUrl=%s",
		targetHost, url.QueryEscape(code), url.QueryEscape(redirectURL)), nil
}

// Redeem exchanges a code for a full session on host. Every check runs in
// a fixed order and any failure burns nothing except the caller's time;
// only a fully successful redemption consumes the embedded temporary
// session.
func (s *CrossDomainService) Redeem(ctx context.Context, code, host, remoteIP string) (*LoginResult, error) {
	var payload crossDomainPayload
	if err := s.codec.Unseal(code, security.PurposeCrossDomainCode, &payload); err != nil {
		observability.RecordCrossDomainEvent(ctx, "redeem", "invalid_code")
		return nil, err
	}
	if payload.SourceHost != s.authHostname {
		observability.RecordCrossDomainEvent(ctx, "redeem", "bad_source")
		return nil, apperr.ErrInvalidSourceHost
	}
	if err := s.turnstile.Verify(ctx, payload.Turnstile, remoteIP); err != nil {
		observability.RecordCrossDomainEvent(ctx, "redeem", "turnstile_failed")
		return nil, err
	}
	if host != payload.TargetHost {
		observability.RecordCrossDomainEvent(ctx, "redeem", "host_mismatch")
		return nil, apperr.ErrHostMismatch
	}
	if time.Since(payload.IssuedAt) > s.ttl {
		observability.RecordCrossDomainEvent(ctx, "redeem", "expired")
		return nil, apperr.ErrCodeExpired
	}
	user, tempSession, err := s.sessions.Validate(ctx, payload.SessionToken, host)
	if err != nil {
		return nil, err
	}
	if user == nil || tempSession == nil {
		observability.RecordCrossDomainEvent(ctx, "redeem", "session_gone")
		return nil, apperr.ErrSessionNotFound
	}
	if tempSession.ID != payload.SessionID {
		observability.RecordCrossDomainEvent(ctx, "redeem", "session_mismatch")
		return nil, apperr.ErrInvalidSession
	}
	if err := s.sessions.Revoke(ctx, tempSession.ID); err != nil {
		return nil, err
	}
	session, token, err := s.sessions.Create(ctx, user.ID, host, 0)
	if err != nil {
		return nil, err
	}
	observability.RecordCrossDomainEvent(ctx, "redeem", "success")
	return &LoginResult{User: user, Session: session, SessionToken: token}, nil
}

func validateRedirectURL(raw, targetHost string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return apperr.ErrInvalidRedirectURL
	}
	if u.Scheme != "https" || u.Host != targetHost {
		return apperr.ErrInvalidRedirectURL
	}
	return nil
}
