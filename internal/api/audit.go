package api

import (
	"log/slog"
	"net/http"

	"github.com/lukeharris/trackd/internal/auth"
)

// auditor emits structured audit entries for state-changing actions. It
// holds the injected logger so handlers never reach for a global.
type auditor struct {
	logger *slog.Logger
}

func (a *auditor) log(r *http.Request, action, resourceType, resourceID string, detail ...any) {
	attrs := []any{
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"ip", clientIP(r),
		"request_id", RequestIDFromContext(r.Context()),
	}

	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		attrs = append(attrs, "user_id", p.UserID, "user_email", p.Email, "user_role", p.Role)
	}

	attrs = append(attrs, detail...)
	a.logger.Info("audit", attrs...)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
