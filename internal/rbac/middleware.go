package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aegis-admin/aegis-admin/internal/auth"
	"github.com/aegis-admin/aegis-admin/internal/observability"
	"github.com/aegis-admin/aegis-admin/internal/platform/httpx"
)

// PermissionSource resolves effective permissions for a subject.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Middleware wires authorization gates for HTTP handlers. It runs after
// the authentication gate and reads the identity from the request context.
type Middleware struct {
	Permissions PermissionSource
	Logger      *slog.Logger
	Metrics     *observability.Metrics
}

// RequireRoles admits when the identity holds at least one of the given
// role names. The decision is made against the token's role snapshot:
// role changes after issuance take effect on the next login.
func (m Middleware) RequireRoles(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.IdentityFromContext(r.Context())
			if identity == nil {
				m.reject(w, r, "no identity")
				return
			}
			if Authorize(identity.Roles, names) != Admit {
				m.reject(w, r, "role requirement not met")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission admits when the subject's current roles grant at
// least one of the given permissions. Unlike RequireRoles this consults
// the store, so it reflects permission changes immediately.
func (m Middleware) RequireAnyPermission(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			identity := auth.IdentityFromContext(r.Context())
			if identity == nil {
				m.reject(w, r, "no identity")
				return
			}
			granted, err := m.Permissions.EffectivePermissions(r.Context(), identity.UserID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("load effective permissions", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			for _, p := range perms {
				if HasPermission(granted, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			m.reject(w, r, "permission requirement not met")
		})
	}
}

func (m Middleware) reject(w http.ResponseWriter, r *http.Request, reason string) {
	if m.Logger != nil {
		m.Logger.Info("request forbidden",
			slog.String("path", r.URL.Path),
			slog.String("reason", reason))
	}
	m.Metrics.AuthFailure("forbidden")
	httpx.RespondError(w, httpx.ErrForbidden)
}
