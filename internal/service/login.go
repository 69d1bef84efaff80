package service

import (
	"context"

	"github.com/storegrid/identity-service/internal/domain"
	"github.com/storegrid/identity-service/internal/observability"
)

// LoginResult is the outcome of any successful credential check. When the
// account has two-factor auth enrolled no session exists yet; the caller
// gets a short-lived pending token to finish the challenge instead.
type LoginResult struct {
	User              *domain.User
	Session           *domain.Session
	SessionToken      string
	TwoFactorRequired bool
	PendingToken      string
}

// completeLogin turns a verified identity into either a session or a
// two-factor challenge, depending on the account's enrollment.
func completeLogin(ctx context.Context, user *domain.User, hostname, provider string, sessions *SessionService, twoFactor *TwoFactorService) (*LoginResult, error) {
	if user.TwoFactorEnrolled() {
		pending, err := twoFactor.PendingToken(user)
		if err != nil {
			return nil, err
		}
		observability.RecordLoginAttempt(ctx, provider, "two_factor_required")
		return &LoginResult{User: user, TwoFactorRequired: true, PendingToken: pending}, nil
	}
	session, token, err := sessions.Create(ctx, user.ID, hostname, 0)
	if err != nil {
		return nil, err
	}
	observability.RecordLoginAttempt(ctx, provider, "success")
	return &LoginResult{User: user, Session: session, SessionToken: token}, nil
}
