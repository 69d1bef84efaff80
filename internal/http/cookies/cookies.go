package cookies

import (
	"net/http"
	"time"
)

// Cookie names used across the auth flows. Every one is HttpOnly; the
// session cookie is the only long-lived one.
const (
	Session          = "auth_session"
	OTPToken         = "otp_token"
	GoogleOAuthState = "google_oauth"
	TwoFactorPending = "two_factor_pending"
)

// sameSiteFor keeps every cookie Strict except the OAuth state cookie,
// which must survive the cross-site return hop from the provider.
func sameSiteFor(name string) http.SameSite {
	if name == GoogleOAuthState {
		return http.SameSiteLaxMode
	}
	return http.SameSiteStrictMode
}

func Set(w http.ResponseWriter, name, value string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSiteFor(name),
	})
}

func Clear(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSiteFor(name),
	})
}

func Value(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
