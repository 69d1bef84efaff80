package service

import (
	"context"
	"errors"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/domain"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/repository"
	"github.com/storegrid/identity-service/internal/security"
)

// twoFactorLoginPayload rides inside the pending-login token issued when a
// password or oauth check succeeds on an enrolled account.
type twoFactorLoginPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Nonce  string `json:"nonce"`
}

// TwoFactorService implements TOTP enrollment and the second step of the
// login flow. Enrollment is two-phase: the key exists only client-side
// until the first valid code proves the authenticator was set up, and both
// the key and the recovery code are encrypted at rest.
type TwoFactorService struct {
	users    repository.UserRepository
	sessions *SessionService
	codec    *security.Codec
	vault    *security.FieldVault
	issuer   string
}

func NewTwoFactorService(users repository.UserRepository, sessions *SessionService, codec *security.Codec, vault *security.FieldVault, issuer string) *TwoFactorService {
	return &TwoFactorService{users: users, sessions: sessions, codec: codec, vault: vault, issuer: issuer}
}

// PendingToken seals a short-lived challenge token for the user. The token
// stands in for the verified first factor until the TOTP code arrives.
func (s *TwoFactorService) PendingToken(user *domain.User) (string, error) {
	payload := twoFactorLoginPayload{
		UserID: user.ID,
		Email:  user.Email,
		Nonce:  security.GenerateSessionToken(),
	}
	return s.codec.Seal(security.PurposeTwoFactorLogin, payload, security.DefaultTokenTTL)
}

// BeginEnrollment generates a fresh key and returns it with the
// provisioning URI. Nothing is persisted; the client must echo the key
// back with a valid code to finish.
func (s *TwoFactorService) BeginEnrollment(ctx context.Context, email string) (keyEncoded, provisioningURI string) {
	key := security.GenerateTOTPKey()
	return security.EncodeTOTPKey(key), security.TOTPProvisioningURI(s.issuer, email, key)
}

// CompleteEnrollment verifies the first code against the echoed key and,
// on success, stores the encrypted key plus a new encrypted recovery code.
// The plaintext recovery code is returned exactly once.
func (s *TwoFactorService) CompleteEnrollment(ctx context.Context, userID, keyEncoded, code string) (string, error) {
	key, err := security.DecodeTOTPKey(keyEncoded)
	if err != nil {
		return "", err
	}
	if !security.VerifyTOTP(key, code) {
		return "", apperr.ErrInvalidTotp
	}
	recovery := security.GenerateRecoveryCode()
	encKey, err := s.vault.EncryptString(keyEncoded)
	if err != nil {
		return "", err
	}
	encRecovery, err := s.vault.EncryptString(recovery)
	if err != nil {
		return "", err
	}
	if err := s.users.SetTwoFactor(ctx, userID, &encKey, &encRecovery); err != nil {
		return "", err
	}
	return recovery, nil
}

// VerifyLoginChallenge finishes a pending login with a TOTP code. A wrong
// code leaves the pending token usable for further attempts within its
// lifetime.
func (s *TwoFactorService) VerifyLoginChallenge(ctx context.Context, pendingToken, code, hostname string) (*LoginResult, error) {
	user, err := s.pendingUser(ctx, pendingToken)
	if err != nil {
		return nil, err
	}
	keyEncoded, err := s.vault.DecryptString(*user.TwoFactorAuthKey)
	if err != nil {
		return nil, err
	}
	key, err := security.DecodeTOTPKey(keyEncoded)
	if err != nil {
		return nil, err
	}
	if !security.VerifyTOTP(key, code) {
		observability.RecordLoginAttempt(ctx, "two_factor", "invalid_code")
		return nil, apperr.ErrInvalidTotp
	}
	session, token, err := s.sessions.Create(ctx, user.ID, hostname, 0)
	if err != nil {
		return nil, err
	}
	observability.RecordLoginAttempt(ctx, "two_factor", "success")
	return &LoginResult{User: user, Session: session, SessionToken: token}, nil
}

// RecoverWithCode finishes a pending login with the recovery code and
// disables two-factor auth entirely; the account is expected to re-enroll
// with a new authenticator afterwards.
func (s *TwoFactorService) RecoverWithCode(ctx context.Context, pendingToken, recoveryCode, hostname string) (*LoginResult, error) {
	user, err := s.pendingUser(ctx, pendingToken)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorAuthRecoveryCode == nil {
		return nil, apperr.ErrInvalidRecoveryCode
	}
	stored, err := s.vault.DecryptString(*user.TwoFactorAuthRecoveryCode)
	if err != nil {
		return nil, err
	}
	if !security.ConstantTimeEquals(stored, recoveryCode) {
		observability.RecordLoginAttempt(ctx, "two_factor_recovery", "invalid_code")
		return nil, apperr.ErrInvalidRecoveryCode
	}
	if err := s.users.SetTwoFactor(ctx, user.ID, nil, nil); err != nil {
		return nil, err
	}
	user.TwoFactorAuthKey = nil
	user.TwoFactorAuthRecoveryCode = nil
	session, token, err := s.sessions.Create(ctx, user.ID, hostname, 0)
	if err != nil {
		return nil, err
	}
	observability.RecordLoginAttempt(ctx, "two_factor_recovery", "success")
	return &LoginResult{User: user, Session: session, SessionToken: token}, nil
}

// IssueNewRecoveryCode rotates the recovery code for an enrolled account
// after the presented TOTP code checks out.
func (s *TwoFactorService) IssueNewRecoveryCode(ctx context.Context, userID, code string) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", apperr.ErrUserNotFound
		}
		return "", err
	}
	if !user.TwoFactorEnrolled() {
		return "", apperr.ErrInvalidTotp
	}
	keyEncoded, err := s.vault.DecryptString(*user.TwoFactorAuthKey)
	if err != nil {
		return "", err
	}
	key, err := security.DecodeTOTPKey(keyEncoded)
	if err != nil {
		return "", err
	}
	if !security.VerifyTOTP(key, code) {
		return "", apperr.ErrInvalidTotp
	}
	recovery := security.GenerateRecoveryCode()
	encRecovery, err := s.vault.EncryptString(recovery)
	if err != nil {
		return "", err
	}
	if err := s.users.SetRecoveryCode(ctx, userID, &encRecovery); err != nil {
		return "", err
	}
	return recovery, nil
}

func (s *TwoFactorService) pendingUser(ctx context.Context, pendingToken string) (*domain.User, error) {
	var payload twoFactorLoginPayload
	if err := s.codec.Unseal(pendingToken, security.PurposeTwoFactorLogin, &payload); err != nil {
		if errors.Is(err, apperr.ErrExpiredToken) {
			return nil, apperr.ErrExpiredToken
		}
		return nil, apperr.ErrInvalidTwoFactorToken
	}
	user, err := s.users.FindByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.ErrInvalidTwoFactorToken
		}
		return nil, err
	}
	// A pending token for an account whose enrollment has since been torn
	// down has no defined recovery path.
	if !user.TwoFactorEnrolled() {
		return nil, apperr.ErrUnknown
	}
	return user, nil
}
