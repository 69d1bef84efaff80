package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/domain"
	"github.com/storegrid/identity-service/internal/security"
)

type passwordFixture struct {
	users     *memUserRepo
	sessions  *SessionService
	twoFactor *TwoFactorService
	otp       *OTPService
	passwords *PasswordService
	sender    *capturingSender
}

func newPasswordFixture(t *testing.T) *passwordFixture {
	t.Helper()
	users := newMemUserRepo()
	repo := newMemSessionRepo(users)
	sessions := NewSessionService(repo, testTTL, testRenewWindow)
	codec := testCodec(t)
	twoFactor := NewTwoFactorService(users, sessions, codec, testVault(t), "auth.example.com")
	sender := newCapturingSender()
	otp := NewOTPService(users, sessions, twoFactor, codec, sender)
	passwords := NewPasswordService(users, sessions, twoFactor, otp, NoopLoginGuard{})
	return &passwordFixture{users: users, sessions: sessions, twoFactor: twoFactor, otp: otp, passwords: passwords, sender: sender}
}

var otpCodePattern = regexp.MustCompile(`[A-Z2-7]{8}`)

func (f *passwordFixture) mailedCode(t *testing.T) string {
	t.Helper()
	if !f.sender.wait(2 * time.Second) {
		t.Fatal("no email sent")
	}
	mail, ok := f.sender.last()
	if !ok {
		t.Fatal("no email captured")
	}
	code := otpCodePattern.FindString(mail.HTML)
	if code == "" {
		t.Fatalf("no otp code in email: %s", mail.HTML)
	}
	return code
}

func (f *passwordFixture) addPasswordUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &domain.User{ID: "user-" + email, Email: email, PasswordHash: &hash, IsEmailVerified: true}
	f.users.add(u)
	return u
}

func TestRegisterCreatesAccountOnlyAfterOTP(t *testing.T) {
	f := newPasswordFixture(t)
	ctx := context.Background()

	token, err := f.passwords.Register(ctx, "new@example.com", "hunter22secret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if exists, _ := f.users.EmailExists(ctx, "new@example.com"); exists {
		t.Fatal("account must not exist before otp verification")
	}

	result, err := f.otp.Verify(ctx, token, f.mailedCode(t), "auth.example.com")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.User.IsEmailVerified {
		t.Fatal("verified account must have a verified email")
	}

	// The registered password works for login.
	loggedIn, err := f.passwords.Login(ctx, "new@example.com", "hunter22secret", "auth.example.com")
	if err != nil {
		t.Fatalf("login after register: %v", err)
	}
	if loggedIn.Session == nil {
		t.Fatal("expected a session")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newPasswordFixture(t)
	f.addPasswordUser(t, "taken@example.com", "some-password")
	if _, err := f.passwords.Register(context.Background(), "taken@example.com", "other-password"); !errors.Is(err, apperr.ErrEmailAlreadyRegistered) {
		t.Fatalf("expected email already registered, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newPasswordFixture(t)
	if _, err := f.passwords.Login(context.Background(), "nobody@example.com", "pw", "auth.example.com"); !errors.Is(err, apperr.ErrEmailNotRegistered) {
		t.Fatalf("expected email not registered, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newPasswordFixture(t)
	f.addPasswordUser(t, "u@example.com", "right-password")
	if _, err := f.passwords.Login(context.Background(), "u@example.com", "wrong-password", "auth.example.com"); !errors.Is(err, apperr.ErrInvalidEmailOrPassword) {
		t.Fatalf("expected invalid email or password, got %v", err)
	}
}

func TestLoginAccountWithoutPassword(t *testing.T) {
	f := newPasswordFixture(t)
	// Google-only account: no password hash. The error is identical to a
	// wrong password so callers cannot probe which accounts have one.
	f.users.add(&domain.User{ID: "user-g", Email: "google@example.com", IsEmailVerified: true})
	if _, err := f.passwords.Login(context.Background(), "google@example.com", "anything", "auth.example.com"); !errors.Is(err, apperr.ErrInvalidEmailOrPassword) {
		t.Fatalf("expected invalid email or password, got %v", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	f := newPasswordFixture(t)
	user := f.addPasswordUser(t, "u@example.com", "right-password")
	result, err := f.passwords.Login(context.Background(), "u@example.com", "right-password", "app.example.com")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.TwoFactorRequired {
		t.Fatal("no mfa enrolled, challenge not expected")
	}
	if result.User.ID != user.ID || result.Session.Hostname != "app.example.com" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestLoginWithTwoFactorReturnsChallenge(t *testing.T) {
	f := newPasswordFixture(t)
	user := f.addPasswordUser(t, "u@example.com", "right-password")
	enroll(t, f.twoFactor, f.users, user)

	result, err := f.passwords.Login(context.Background(), "u@example.com", "right-password", "auth.example.com")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !result.TwoFactorRequired {
		t.Fatal("expected two-factor challenge")
	}
	if result.Session != nil || result.SessionToken != "" {
		t.Fatal("no session may exist before the second factor")
	}
	if result.PendingToken == "" {
		t.Fatal("missing pending token")
	}
}

func TestLoginGuardThrottles(t *testing.T) {
	f := newPasswordFixture(t)
	f.addPasswordUser(t, "u@example.com", "right-password")
	guarded := NewPasswordService(f.users, f.sessions, f.twoFactor, f.otp, denyingGuard{})
	if _, err := guarded.Login(context.Background(), "u@example.com", "right-password", "auth.example.com"); !errors.Is(err, apperr.ErrTooManyTries) {
		t.Fatalf("expected throttle error, got %v", err)
	}
}

type denyingGuard struct{}

func (denyingGuard) Check(context.Context, string) error { return apperr.ErrTooManyTries }
func (denyingGuard) Fail(context.Context, string) error  { return nil }
func (denyingGuard) Reset(context.Context, string) error { return nil }
