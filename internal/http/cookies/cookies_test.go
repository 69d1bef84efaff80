package cookies

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func setCookieHeader(t *testing.T, name string) string {
	t.Helper()
	rr := httptest.NewRecorder()
	Set(rr, name, "value", 10*time.Minute, true)
	h := rr.Header().Get("Set-Cookie")
	if h == "" {
		t.Fatal("no Set-Cookie header written")
	}
	return h
}

func TestSessionCookiesAreStrict(t *testing.T) {
	for _, name := range []string{Session, OTPToken, TwoFactorPending} {
		h := setCookieHeader(t, name)
		if !strings.Contains(h, "SameSite=Strict") {
			t.Errorf("%s: expected SameSite=Strict, got %q", name, h)
		}
		if !strings.Contains(h, "HttpOnly") {
			t.Errorf("%s: must be HttpOnly, got %q", name, h)
		}
	}
}

func TestOAuthStateCookieIsLax(t *testing.T) {
	h := setCookieHeader(t, GoogleOAuthState)
	if !strings.Contains(h, "SameSite=Lax") {
		t.Fatalf("oauth state must survive the cross-site return hop, got %q", h)
	}
}

func TestClearExpiresWithMatchingSameSite(t *testing.T) {
	rr := httptest.NewRecorder()
	Clear(rr, Session, true)
	var cleared *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == Session {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected expired cookie, got %+v", cleared)
	}
	if cleared.SameSite != http.SameSiteStrictMode {
		t.Fatalf("clear must reuse the cookie's SameSite mode, got %v", cleared.SameSite)
	}
}

func TestValueMissingCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := Value(req, Session); got != "" {
		t.Fatalf("missing cookie must read empty, got %q", got)
	}
}
