package service

import (
	"context"
	"errors"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/repository"
	"github.com/storegrid/identity-service/internal/security"
)

// PasswordService implements email+password registration and login.
// Registration does not create the account directly; it hands the hashed
// password to the otp flow and the account materializes once the email is
// verified.
type PasswordService struct {
	users     repository.UserRepository
	sessions  *SessionService
	twoFactor *TwoFactorService
	otp       *OTPService
	guard     LoginGuard
}

func NewPasswordService(users repository.UserRepository, sessions *SessionService, twoFactor *TwoFactorService, otp *OTPService, guard LoginGuard) *PasswordService {
	return &PasswordService{users: users, sessions: sessions, twoFactor: twoFactor, otp: otp, guard: guard}
}

// Register hashes the password and issues an otp token for the email.
// Already-registered emails are rejected up front.
func (s *PasswordService) Register(ctx context.Context, email, password string) (string, error) {
	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return "", err
	}
	if exists {
		return "", apperr.ErrEmailAlreadyRegistered
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return "", err
	}
	return s.otp.Issue(ctx, email, &hash)
}

// Login verifies the password and completes the login. Unknown emails are
// reported as such; every later failure collapses into the same invalid
// credentials error so the response never reveals whether the account has
// a password at all.
func (s *PasswordService) Login(ctx context.Context, email, password, hostname string) (*LoginResult, error) {
	if err := s.guard.Check(ctx, email); err != nil {
		observability.RecordLoginAttempt(ctx, "password", "throttled")
		return nil, err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordLoginAttempt(ctx, "password", "unknown_email")
			return nil, apperr.ErrEmailNotRegistered
		}
		return nil, err
	}
	if user.PasswordHash == nil {
		observability.RecordLoginAttempt(ctx, "password", "no_password")
		_ = s.guard.Fail(ctx, email)
		return nil, apperr.ErrInvalidEmailOrPassword
	}
	ok, err := security.VerifyPassword(*user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.RecordLoginAttempt(ctx, "password", "bad_password")
		_ = s.guard.Fail(ctx, email)
		return nil, apperr.ErrInvalidEmailOrPassword
	}
	_ = s.guard.Reset(ctx, email)
	return completeLogin(ctx, user, hostname, "password", s.sessions, s.twoFactor)
}
