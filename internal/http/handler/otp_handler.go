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

type OTPHandler struct {
	cfg       *config.Config
	otp       *service.OTPService
	sessions  *service.SessionService
	turnstile service.TurnstileVerifier
}

func NewOTPHandler(cfg *config.Config, otp *service.OTPService, sessions *service.SessionService, turnstile service.TurnstileVerifier) *OTPHandler {
	return &OTPHandler{cfg: cfg, otp: otp, sessions: sessions, turnstile: turnstile}
}

// Request mails a one-time code to the address and stores the sealed token
// in a cookie. The response does not reveal whether the address has an
// account.
func (h *OTPHandler) Request(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email          string `json:"email"`
		TurnstileToken string `json:"turnstileToken"`
	}
	if !decodeJSON(r, &body) || body.Email == "" {
		badRequest(w, r)
		return
	}
	if err := h.turnstile.Verify(r.Context(), body.TurnstileToken, remoteIP(r)); err != nil {
		response.AppError(w, r, err)
		return
	}
	token, err := h.otp.Issue(r.Context(), body.Email, nil)
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	cookies.Set(w, cookies.OTPToken, token, 10*time.Minute, !h.cfg.IsDev())
	observability.Audit(r, "otp_requested", "email", body.Email)
	response.JSON(w, r, http.StatusOK, map[string]any{"status": "otp_sent"})
}

// Verify exchanges the cookie token plus the mailed code for a login. The
// cookie is cleared before the outcome is known, so every token gets one
// attempt.
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OTP string `json:"otp"`
	}
	if !decodeJSON(r, &body) || body.OTP == "" {
		badRequest(w, r)
		return
	}
	token := cookies.Value(r, cookies.OTPToken)
	cookies.Clear(w, cookies.OTPToken, !h.cfg.IsDev())
	if token == "" {
		response.AppError(w, r, apperr.ErrInvalidOtp)
		return
	}
	result, err := h.otp.Verify(r.Context(), token, body.OTP, middleware.HostnameFromContext(r.Context()))
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	observability.Audit(r, "otp_verified", "user_id", result.User.ID)
	writeLoginResult(w, r, h.cfg, h.sessions, result)
}
