package handler

import (
	"net/http"

	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/http/cookies"
	"github.com/storegrid/identity-service/internal/http/middleware"
	"github.com/storegrid/identity-service/internal/http/response"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/service"
)

type UserHandler struct {
	cfg      *config.Config
	sessions *service.SessionService
}

func NewUserHandler(cfg *config.Config, sessions *service.SessionService) *UserHandler {
	return &UserHandler{cfg: cfg, sessions: sessions}
}

// Whoami returns the authenticated user, or user: null for anonymous
// callers. The SSR front-end polls this on every page load, so anonymous
// is a normal answer, not an error.
func (h *UserHandler) Whoami(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.JSON(w, r, http.StatusOK, map[string]any{"user": nil})
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": newUserView(user)})
}

// Logout revokes the current session and clears the cookie. Calling it
// without a session still clears the cookie and succeeds.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session, ok := middleware.SessionFromContext(r.Context()); ok {
		if err := h.sessions.Revoke(r.Context(), session.ID); err != nil {
			response.AppError(w, r, err)
			return
		}
		observability.Audit(r, "logout", "session_id", session.ID)
	}
	cookies.Clear(w, cookies.Session, !h.cfg.IsDev())
	response.JSON(w, r, http.StatusOK, map[string]any{"status": "logged_out"})
}
