package service

import (
	"context"
	"strings"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/repository"
	"github.com/storegrid/identity-service/internal/security"
)

// otpPayload rides inside the sealed otp token. The code never touches
// storage; the token in the caller's cookie is the only copy. A non-nil
// PasswordHash means the verification doubles as account registration.
type otpPayload struct {
	Email        string  `json:"email"`
	Code         string  `json:"code"`
	PasswordHash *string `json:"passwordHash,omitempty"`
}

// OTPService implements email ownership verification through one-time
// codes sealed into stateless tokens.
type OTPService struct {
	users     repository.UserRepository
	sessions  *SessionService
	twoFactor *TwoFactorService
	codec     *security.Codec
	sender    EmailSender
}

func NewOTPService(users repository.UserRepository, sessions *SessionService, twoFactor *TwoFactorService, codec *security.Codec, sender EmailSender) *OTPService {
	return &OTPService{users: users, sessions: sessions, twoFactor: twoFactor, codec: codec, sender: sender}
}

// Issue generates a fresh code, seals it with the email (and the optional
// registration password hash) and dispatches the mail. The returned token
// goes into a cookie; delivery happens in the background.
func (s *OTPService) Issue(ctx context.Context, email string, passwordHash *string) (string, error) {
	code := security.GenerateOTP()
	token, err := s.codec.Seal(security.PurposeOTP, otpPayload{
		Email:        email,
		Code:         code,
		PasswordHash: passwordHash,
	}, security.DefaultTokenTTL)
	if err != nil {
		return "", err
	}
	SendOTPEmail(s.sender, email, code)
	return token, nil
}

// Verify checks code against the sealed token and, on match, upserts the
// account, marks the email verified and completes the login. The code
// comparison ignores case. The handler clears the token cookie whatever
// the outcome; each token gets exactly one attempt.
func (s *OTPService) Verify(ctx context.Context, token, code, hostname string) (*LoginResult, error) {
	var payload otpPayload
	if err := s.codec.Unseal(token, security.PurposeOTP, &payload); err != nil {
		return nil, err
	}
	if !strings.EqualFold(payload.Code, code) {
		observability.RecordLoginAttempt(ctx, "otp", "invalid_code")
		return nil, apperr.ErrInvalidOtp
	}
	user, err := s.users.UpsertByEmail(ctx, payload.Email, payload.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !user.IsEmailVerified {
		if err := s.users.UpdateProfile(ctx, user.ID, user.Name, user.PictureURL, true); err != nil {
			return nil, err
		}
		user.IsEmailVerified = true
	}
	return completeLogin(ctx, user, hostname, "otp", s.sessions, s.twoFactor)
}
