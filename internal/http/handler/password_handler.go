package handler

import (
	"net/http"
	"time"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/http/cookies"
	"github.com/storegrid/identity-service/internal/http/middleware"
	"github.com/storegrid/identity-service/internal/http/response"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/service"
)

type PasswordHandler struct {
	cfg       *config.Config
	passwords *service.PasswordService
	sessions  *service.SessionService
	turnstile service.TurnstileVerifier
}

func NewPasswordHandler(cfg *config.Config, passwords *service.PasswordService, sessions *service.SessionService, turnstile service.TurnstileVerifier) *PasswordHandler {
	return &PasswordHandler{cfg: cfg, passwords: passwords, sessions: sessions, turnstile: turnstile}
}

// Register starts account creation. The account does not exist yet when
// this returns; the OTP_REQUIRED response tells the client to collect the
// mailed code and call the otp verify endpoint.
func (h *PasswordHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email          string `json:"email"`
		Password       string `json:"password"`
		TurnstileToken string `json:"turnstileToken"`
	}
	if !decodeJSON(r, &body) || body.Email == "" || len(body.Password) < 8 {
		badRequest(w, r)
		return
	}
	if err := h.turnstile.Verify(r.Context(), body.TurnstileToken, remoteIP(r)); err != nil {
		response.AppError(w, r, err)
		return
	}
	token, err := h.passwords.Register(r.Context(), body.Email, body.Password)
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	cookies.Set(w, cookies.OTPToken, token, 10*time.Minute, !h.cfg.IsDev())
	observability.Audit(r, "register_started", "email", body.Email)
	response.AppError(w, r, apperr.ErrOtpRequired)
}

func (h *PasswordHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email          string `json:"email"`
		Password       string `json:"password"`
		TurnstileToken string `json:"turnstileToken"`
	}
	if !decodeJSON(r, &body) || body.Email == "" || body.Password == "" {
		badRequest(w, r)
		return
	}
	if err := h.turnstile.Verify(r.Context(), body.TurnstileToken, remoteIP(r)); err != nil {
		response.AppError(w, r, err)
		return
	}
	result, err := h.passwords.Login(r.Context(), body.Email, body.Password, middleware.HostnameFromContext(r.Context()))
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	observability.Audit(r, "password_login", "user_id", result.User.ID, "two_factor", result.TwoFactorRequired)
	writeLoginResult(w, r, h.cfg, h.sessions, result)
}
