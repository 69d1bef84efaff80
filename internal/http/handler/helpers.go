package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/domain"
	"github.com/storegrid/identity-service/internal/http/cookies"
	"github.com/storegrid/identity-service/internal/http/response"
	"github.com/storegrid/identity-service/internal/service"
)

type userView struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	Name             string  `json:"name"`
	PictureURL       *string `json:"pictureUrl"`
	IsEmailVerified  bool    `json:"isEmailVerified"`
	TwoFactorEnabled bool    `json:"twoFactorEnabled"`
}

func newUserView(u *domain.User) userView {
	return userView{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		PictureURL:       u.PictureURL,
		IsEmailVerified:  u.IsEmailVerified,
		TwoFactorEnabled: u.TwoFactorEnrolled(),
	}
}

func decodeJSON(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func badRequest(w http.ResponseWriter, r *http.Request) {
	response.AppError(w, r, apperr.ErrInvalidRequest)
}

// writeLoginResult finishes a login response: either a session cookie plus
// the user payload, or the two-factor challenge with its pending cookie.
func writeLoginResult(w http.ResponseWriter, r *http.Request, cfg *config.Config, sessions *service.SessionService, result *service.LoginResult) {
	secure := !cfg.IsDev()
	if result.TwoFactorRequired {
		cookies.Set(w, cookies.TwoFactorPending, result.PendingToken, 10*time.Minute, secure)
		response.JSON(w, r, http.StatusOK, map[string]any{
			"twoFactorRequired": true,
		})
		return
	}
	cookies.Set(w, cookies.Session, result.SessionToken, sessions.TTL(), secure)
	cookies.Clear(w, cookies.TwoFactorPending, secure)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"twoFactorRequired": false,
		"user":              newUserView(result.User),
	})
}

func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
