package apperr

import (
	"errors"
	"net/http"
)

// Error is a known, caller-visible failure with a stable machine-readable
// code. Anything that is not an *Error is treated as internal and never
// leaks past the response boundary.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }

func New(status int, code, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// From unwraps err into a known *Error if there is one in the chain.
func From(err error) (*Error, bool) {
	var known *Error
	if errors.As(err, &known) {
		return known, true
	}
	return nil, false
}

// Token errors. Only the expired-vs-other distinction is exposed; callers
// must not learn which specific verification step failed.
var (
	ErrInvalidToken = New(http.StatusUnauthorized, "INVALID_TOKEN", "invalid token")
	ErrExpiredToken = New(http.StatusUnauthorized, "EXPIRED_TOKEN", "expired token")
)

// Cross-domain SSO errors.
var (
	ErrInvalidSourceHost  = New(http.StatusBadRequest, "INVALID_SOURCE_HOST", "code was not issued by the identity host")
	ErrHostMismatch       = New(http.StatusBadRequest, "HOST_MISMATCH", "code was issued for a different host")
	ErrCodeExpired        = New(http.StatusBadRequest, "CODE_EXPIRED", "cross-domain code expired")
	ErrInvalidRedirectURL = New(http.StatusBadRequest, "INVALID_REDIRECT_URL", "invalid redirect URL")
	ErrUserNotFound       = New(http.StatusUnauthorized, "USER_NOT_FOUND", "user not found")
	ErrSessionNotFound    = New(http.StatusUnauthorized, "SESSION_NOT_FOUND", "session not found")
	ErrInvalidSession     = New(http.StatusUnauthorized, "INVALID_SESSION", "invalid session")
)

// Two-factor errors.
var (
	ErrInvalidKey            = New(http.StatusBadRequest, "INVALID_KEY", "invalid TOTP key")
	ErrInvalidTotp           = New(http.StatusBadRequest, "INVALID_TOTP", "invalid TOTP code")
	ErrInvalidTwoFactorToken = New(http.StatusUnauthorized, "INVALID_TWO_FACTOR_AUTH_TOKEN", "invalid two-factor auth token")
	ErrInvalidRecoveryCode   = New(http.StatusBadRequest, "INVALID_RECOVERY_CODE", "invalid recovery code")
	ErrUnknown               = New(http.StatusInternalServerError, "UNKNOWN_ERROR", "unknown error")
)

// Credential errors. Unknown-email and wrong-password deliberately share one
// message to prevent account enumeration.
var (
	ErrEmailAlreadyRegistered = New(http.StatusBadRequest, "EMAIL_ALREADY_REGISTERED", "email already registered")
	ErrEmailNotRegistered     = New(http.StatusBadRequest, "EMAIL_NOT_REGISTERED", "email not registered")
	ErrInvalidEmailOrPassword = New(http.StatusUnauthorized, "INVALID_EMAIL_OR_PASSWORD", "invalid email or password")
	ErrInvalidOtp             = New(http.StatusBadRequest, "INVALID_OTP", "invalid or expired OTP")
	ErrOtpRequired            = New(http.StatusForbidden, "OTP_REQUIRED", "email verification required")
	ErrTwoFactorRequired      = New(http.StatusForbidden, "TWO_FACTOR_AUTH_REQUIRED", "two-factor authentication required")
)

// Request shape / anti-bot errors.
var (
	ErrTurnstile      = New(http.StatusForbidden, "INVALID_TURNSTILE_TOKEN", "verification failed")
	ErrInvalidOrigin  = New(http.StatusForbidden, "INVALID_ORIGIN", "invalid origin")
	ErrInvalidRequest = New(http.StatusBadRequest, "INVALID_REQUEST", "invalid request")
	ErrTooManyTries   = New(http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "too many attempts, slow down")
)
