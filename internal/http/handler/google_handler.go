package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/http/cookies"
	"github.com/storegrid/identity-service/internal/http/middleware"
	"github.com/storegrid/identity-service/internal/http/response"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/service"
)

const twoFactorLoginPath = "/login/two_factor"

type GoogleHandler struct {
	cfg      *config.Config
	google   *service.GoogleService
	sessions *service.SessionService
}

func NewGoogleHandler(cfg *config.Config, google *service.GoogleService, sessions *service.SessionService) *GoogleHandler {
	return &GoogleHandler{cfg: cfg, google: google, sessions: sessions}
}

// Login redirects the browser to the Google consent screen. The sealed
// state (with the PKCE verifier and the post-login destination) travels in
// a short-lived cookie.
func (h *GoogleHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.google.Enabled() {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "google login is not configured", nil)
		return
	}
	redirectURL := sanitizeLocalRedirect(r.URL.Query().Get("redirectUrl"))
	authURL, stateToken, err := h.google.Begin(middleware.HostnameFromContext(r.Context()), redirectURL)
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	cookies.Set(w, cookies.GoogleOAuthState, stateToken, 10*time.Minute, !h.cfg.IsDev())
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback finishes the oauth flow. On success the browser lands on the
// destination captured at login time with a session (or two-factor
// pending) cookie set.
func (h *GoogleHandler) Callback(w http.ResponseWriter, r *http.Request) {
	secure := !h.cfg.IsDev()
	stateToken := cookies.Value(r, cookies.GoogleOAuthState)
	cookies.Clear(w, cookies.GoogleOAuthState, secure)
	q := r.URL.Query()
	if stateToken == "" || q.Get("state") == "" || q.Get("code") == "" {
		badRequest(w, r)
		return
	}
	result, redirectURL, err := h.google.Callback(
		r.Context(), stateToken, q.Get("state"), q.Get("code"),
		middleware.HostnameFromContext(r.Context()),
	)
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	observability.Audit(r, "google_login", "user_id", result.User.ID, "two_factor", result.TwoFactorRequired)
	redirectURL = sanitizeLocalRedirect(redirectURL)
	if result.TwoFactorRequired {
		cookies.Set(w, cookies.TwoFactorPending, result.PendingToken, 10*time.Minute, secure)
		http.Redirect(w, r, twoFactorLoginPath+"?redirectUrl="+url.QueryEscape(redirectURL), http.StatusFound)
		return
	}
	cookies.Set(w, cookies.Session, result.SessionToken, h.sessions.TTL(), secure)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// sanitizeLocalRedirect pins post-login redirects to same-site paths so
// the oauth flow cannot be used as an open redirector.
func sanitizeLocalRedirect(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return "/"
	}
	return raw
}
