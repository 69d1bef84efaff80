package observability

import (
	"log/slog"
	"net/http"
)

// Audit emits a structured audit log line for a security-relevant request
// event (login, logout, enrollment, cross-domain issue/redeem).
func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"host", r.Host,
		"request_id", r.Header.Get("X-Request-Id"),
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}
