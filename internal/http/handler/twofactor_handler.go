package handler

import (
	"net/http"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/http/cookies"
	"github.com/storegrid/identity-service/internal/http/middleware"
	"github.com/storegrid/identity-service/internal/http/response"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/service"
)

type TwoFactorHandler struct {
	cfg       *config.Config
	twoFactor *service.TwoFactorService
	sessions  *service.SessionService
}

func NewTwoFactorHandler(cfg *config.Config, twoFactor *service.TwoFactorService, sessions *service.SessionService) *TwoFactorHandler {
	return &TwoFactorHandler{cfg: cfg, twoFactor: twoFactor, sessions: sessions}
}

// Setup hands the client a fresh key and provisioning URI. Nothing is
// stored until Enable sees a valid code for this key.
func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	key, uri := h.twoFactor.BeginEnrollment(r.Context(), user.Email)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"key":             key,
		"provisioningUri": uri,
	})
}

// Enable completes enrollment: the client echoes the key from Setup with
// the first authenticator code. The recovery code in the response is shown
// exactly once.
func (h *TwoFactorHandler) Enable(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key  string `json:"key"`
		TOTP string `json:"totp"`
	}
	if !decodeJSON(r, &body) || body.Key == "" || body.TOTP == "" {
		badRequest(w, r)
		return
	}
	user, _ := middleware.UserFromContext(r.Context())
	recovery, err := h.twoFactor.CompleteEnrollment(r.Context(), user.ID, body.Key, body.TOTP)
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	observability.Audit(r, "two_factor_enabled", "user_id", user.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{"recoveryCode": recovery})
}

// Verify is the second login step: pending cookie plus authenticator code.
// A wrong code leaves the pending cookie in place for another attempt.
func (h *TwoFactorHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TOTP string `json:"totp"`
	}
	if !decodeJSON(r, &body) || body.TOTP == "" {
		badRequest(w, r)
		return
	}
	pending := cookies.Value(r, cookies.TwoFactorPending)
	if pending == "" {
		response.AppError(w, r, apperr.ErrInvalidTwoFactorToken)
		return
	}
	result, err := h.twoFactor.VerifyLoginChallenge(r.Context(), pending, body.TOTP, middleware.HostnameFromContext(r.Context()))
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	observability.Audit(r, "two_factor_login", "user_id", result.User.ID)
	writeLoginResult(w, r, h.cfg, h.sessions, result)
}

// Recover finishes a pending login with the recovery code and turns
// two-factor auth off for the account.
func (h *TwoFactorHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RecoveryCode string `json:"recoveryCode"`
	}
	if !decodeJSON(r, &body) || body.RecoveryCode == "" {
		badRequest(w, r)
		return
	}
	pending := cookies.Value(r, cookies.TwoFactorPending)
	if pending == "" {
		response.AppError(w, r, apperr.ErrInvalidTwoFactorToken)
		return
	}
	result, err := h.twoFactor.RecoverWithCode(r.Context(), pending, body.RecoveryCode, middleware.HostnameFromContext(r.Context()))
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	observability.Audit(r, "two_factor_recovered", "user_id", result.User.ID)
	writeLoginResult(w, r, h.cfg, h.sessions, result)
}

// RotateRecoveryCode mints a replacement recovery code for an enrolled
// account after a valid authenticator code.
func (h *TwoFactorHandler) RotateRecoveryCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TOTP string `json:"totp"`
	}
	if !decodeJSON(r, &body) || body.TOTP == "" {
		badRequest(w, r)
		return
	}
	user, _ := middleware.UserFromContext(r.Context())
	recovery, err := h.twoFactor.IssueNewRecoveryCode(r.Context(), user.ID, body.TOTP)
	if err != nil {
		response.AppError(w, r, err)
		return
	}
	observability.Audit(r, "recovery_code_rotated", "user_id", user.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{"recoveryCode": recovery})
}
