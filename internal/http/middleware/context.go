package middleware

import (
	"context"

	"github.com/storegrid/identity-service/internal/domain"
)

type contextKey string

const (
	userContextKey     contextKey = "user"
	sessionContextKey  contextKey = "session"
	hostnameContextKey contextKey = "hostname"
)

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userContextKey).(*domain.User)
	return u, ok
}

func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*domain.Session)
	return s, ok
}

// HostnameFromContext returns the client hostname resolved by the session
// middleware: either the request host or the trusted forwarded host.
func HostnameFromContext(ctx context.Context) string {
	h, _ := ctx.Value(hostnameContextKey).(string)
	return h
}
