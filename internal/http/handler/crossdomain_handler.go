package handler

import (
	"net/http"
	"net/url"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/http/cookies"
	"github.com/storegrid/identity-service/internal/http/middleware"
	"github.com/storegrid/identity-service/internal/http/response"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/service"
)

type CrossDomainHandler struct {
	cfg         *config.Config
	crossDomain *service.CrossDomainService
	sessions    *service.SessionService
}

func NewCrossDomainHandler(cfg *config.Config, crossDomain *service.CrossDomainService, sessions *service.SessionService) *CrossDomainHandler {
	return &CrossDomainHandler{cfg: cfg, crossDomain: crossDomain, sessions: sessions}
}

// Redirector runs on the auth host for a logged-in user and returns the
// callback URL on the target host carrying the sealed single-use code.
func (h *CrossDomainHandler) Redirector(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TargetHost     string `json:"targetHost"`
		RedirectURL    string `json:"redirectUrl"`
		TurnstileToken string `json:"turnstileToken"`
	}
	if !decodeJSON(r, &body) || body.TargetHost == "" || body.RedirectURL == "" {
		badRequest(w, r)
		return
	}
	user, _ := middleware.UserFromContext(r.Context())
	callbackURL, err := h.crossDomain.Issue(r.Context(), user.ID, body.TargetHost, body.TurnstileToken, body.RedirectURL)
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	observability.Audit(r, "cross_domain_issued", "user_id", user.ID, "target_host", body.TargetHost)
	response.JSON(w, r, http.StatusOK, map[string]any{"redirectUrl": callbackURL})
}

// Callback runs on the target host: it redeems the code for a session
// there and forwards the browser to the requested destination.
func (h *CrossDomainHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		badRequest(w, r)
		return
	}
	hostname := middleware.HostnameFromContext(r.Context())
	// The redirect is checked before redemption so a tampered destination
	// cannot burn the single-use code.
	redirectURL := q.Get("redirectUrl")
	if u, perr := url.Parse(redirectURL); perr != nil || u.Scheme != "https" || u.Host != hostname {
		response.AppError(w, r, apperr.ErrInvalidRedirectURL)
		return
	}
	result, err := h.crossDomain.Redeem(r.Context(), code, hostname, remoteIP(r))
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	cookies.Set(w, cookies.Session, result.SessionToken, h.sessions.TTL(), !h.cfg.IsDev())
	observability.Audit(r, "cross_domain_redeemed", "user_id", result.User.ID, "host", hostname)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}
