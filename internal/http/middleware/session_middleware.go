package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/http/cookies"
	"github.com/storegrid/identity-service/internal/http/response"
	"github.com/storegrid/identity-service/internal/security"
	"github.com/storegrid/identity-service/internal/service"
)

const (
	forwardedHostHeader  = "X-Forwarded-Auth-Host"
	internalSecretHeader = "X-Internal-Auth-Secret"
)

// RequestHostname resolves the hostname a session is bound to. The
// co-located SSR front-end proxies auth checks server-side, so the real
// client host arrives in a forwarded header; it is only honored when the
// shared internal secret matches.
func RequestHostname(r *http.Request, cfg *config.Config) string {
	forwarded := r.Header.Get(forwardedHostHeader)
	if forwarded != "" && cfg.InternalAuthSecret != "" &&
		security.ConstantTimeEquals(r.Header.Get(internalSecretHeader), cfg.InternalAuthSecret) {
		return stripPort(forwarded)
	}
	return stripPort(r.Host)
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// SessionMiddleware resolves the session cookie into a user. Requests
// without a valid session pass through unauthenticated; an invalid cookie
// is cleared, and a session renewed during validation gets its cookie
// reissued with the extended expiry.
func SessionMiddleware(sessions *service.SessionService, cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hostname := RequestHostname(r, cfg)
			ctx := context.WithValue(r.Context(), hostnameContextKey, hostname)
			token := cookies.Value(r, cookies.Session)
			if token == "" {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			user, session, err := sessions.Validate(ctx, token, hostname)
			if err != nil {
				response.AppError(w, r, err)
				return
			}
			if user == nil {
				cookies.Clear(w, cookies.Session, !cfg.IsDev())
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if session.Fresh {
				cookies.Set(w, cookies.Session, token, sessions.TTL(), !cfg.IsDev())
			}
			ctx = context.WithValue(ctx, userContextKey, user)
			ctx = context.WithValue(ctx, sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser gates a route on an authenticated session.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthHost restricts a route group to the canonical auth hostname.
// Credential entry points never run on partner hosts.
func RequireAuthHost(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if HostnameFromContext(r.Context()) != cfg.AuthHostname {
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "not available on this host", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFMiddleware rejects state-changing requests whose Origin header names
// a different host than the one being addressed. Requests without an
// Origin header (non-browser clients) pass.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		origin := r.Header.Get("Origin")
		if origin != "" && origin != "null" {
			if originHost(origin) != stripPort(r.Host) {
				response.AppError(w, r, apperr.ErrInvalidOrigin)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func originHost(origin string) string {
	rest := origin
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return stripPort(rest)
}
