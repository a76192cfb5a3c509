package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aegis-admin/aegis-admin/internal/observability"
	"github.com/aegis-admin/aegis-admin/internal/platform/httpx"
)

// Gate authenticates requests: it extracts the bearer token, verifies it,
// resolves the subject to a live user record and attaches the identity to
// the request context. Every failure maps to the same 401 response; the
// specific cause is only logged.
type Gate struct {
	Service *Service
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Authenticate is the middleware form of the gate.
func (g Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			g.reject(w, "missing bearer token")
			return
		}
		identity, err := g.Service.Authenticate(r.Context(), token)
		if err != nil {
			g.reject(w, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

func (g Gate) reject(w http.ResponseWriter, reason string) {
	if g.Logger != nil {
		g.Logger.Info("request rejected", slog.String("reason", reason))
	}
	g.Metrics.AuthFailure("unauthenticated")
	httpx.RespondError(w, httpx.ErrUnauthenticated)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
