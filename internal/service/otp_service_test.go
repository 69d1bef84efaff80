package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/domain"
)

func newOTPFixture(t *testing.T) (*OTPService, *memUserRepo, *capturingSender) {
	t.Helper()
	users := newMemUserRepo()
	repo := newMemSessionRepo(users)
	sessions := NewSessionService(repo, testTTL, testRenewWindow)
	codec := testCodec(t)
	twoFactor := NewTwoFactorService(users, sessions, codec, testVault(t), "auth.example.com")
	sender := newCapturingSender()
	return NewOTPService(users, sessions, twoFactor, codec, sender), users, sender
}

func mailedOTP(t *testing.T, sender *capturingSender) string {
	t.Helper()
	if !sender.wait(2 * time.Second) {
		t.Fatal("no email sent")
	}
	mail, _ := sender.last()
	code := otpCodePattern.FindString(mail.HTML)
	if code == "" {
		t.Fatalf("no code in mail: %s", mail.HTML)
	}
	return code
}

func TestOTPIssueAndVerifyCreatesAccount(t *testing.T) {
	svc, users, sender := newOTPFixture(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, "fresh@example.com", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	code := mailedOTP(t, sender)

	result, err := svc.Verify(ctx, token, code, "auth.example.com")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.User.Email != "fresh@example.com" || !result.User.IsEmailVerified {
		t.Fatalf("unexpected user: %+v", result.User)
	}
	if result.Session == nil || result.Session.Hostname != "auth.example.com" {
		t.Fatal("expected a session on the verifying host")
	}
	if exists, _ := users.EmailExists(ctx, "fresh@example.com"); !exists {
		t.Fatal("account must exist after verification")
	}
}

func TestOTPVerifyIsCaseInsensitive(t *testing.T) {
	svc, _, sender := newOTPFixture(t)
	ctx := context.Background()
	token, err := svc.Issue(ctx, "a@example.com", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	code := strings.ToLower(mailedOTP(t, sender))
	if _, err := svc.Verify(ctx, token, code, "auth.example.com"); err != nil {
		t.Fatalf("lowercased code must verify: %v", err)
	}
}

func TestOTPVerifyWrongCode(t *testing.T) {
	svc, _, sender := newOTPFixture(t)
	ctx := context.Background()
	token, err := svc.Issue(ctx, "a@example.com", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	mailedOTP(t, sender)
	if _, err := svc.Verify(ctx, token, "WRONGCOD", "auth.example.com"); !errors.Is(err, apperr.ErrInvalidOtp) {
		t.Fatalf("expected invalid otp, got %v", err)
	}
}

func TestOTPVerifyGarbageToken(t *testing.T) {
	svc, _, _ := newOTPFixture(t)
	if _, err := svc.Verify(context.Background(), "junk", "ABCD2345", "auth.example.com"); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestOTPLoginForExistingAccountKeepsPassword(t *testing.T) {
	svc, users, sender := newOTPFixture(t)
	ctx := context.Background()
	hash := "existing-hash"
	users.add(&domain.User{ID: "user-1", Email: "a@example.com", PasswordHash: &hash})

	token, err := svc.Issue(ctx, "a@example.com", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	result, err := svc.Verify(ctx, token, mailedOTP(t, sender), "auth.example.com")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.User.ID != "user-1" {
		t.Fatalf("must attach to the existing account, got %s", result.User.ID)
	}
	stored, err := users.FindByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.PasswordHash == nil || *stored.PasswordHash != hash {
		t.Fatal("otp login must not touch the password hash")
	}
	if !stored.IsEmailVerified {
		t.Fatal("verification must mark the email verified")
	}
}

func TestOTPWithTwoFactorReturnsChallenge(t *testing.T) {
	users := newMemUserRepo()
	repo := newMemSessionRepo(users)
	sessions := NewSessionService(repo, testTTL, testRenewWindow)
	codec := testCodec(t)
	twoFactor := NewTwoFactorService(users, sessions, codec, testVault(t), "auth.example.com")
	sender := newCapturingSender()
	svc := NewOTPService(users, sessions, twoFactor, codec, sender)

	user := &domain.User{ID: "user-1", Email: "a@example.com", IsEmailVerified: true}
	users.add(user)
	enroll(t, twoFactor, users, user)

	token, err := svc.Issue(context.Background(), "a@example.com", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	result, err := svc.Verify(context.Background(), token, mailedOTP(t, sender), "auth.example.com")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.TwoFactorRequired || result.PendingToken == "" {
		t.Fatal("enrolled account must get a two-factor challenge")
	}
	if repo.count() != 0 {
		t.Fatal("no session may exist before the second factor")
	}
}
