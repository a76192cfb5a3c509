package rbac_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aegis-admin/aegis-admin/internal/auth"
	"github.com/aegis-admin/aegis-admin/internal/rbac"
	_ "github.com/aegis-admin/aegis-admin/testing"
)

type stubPermissions struct {
	granted map[int64][]string
	err     error
}

func (s *stubPermissions) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.granted[userID], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithIdentity(id *auth.Identity) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	if id == nil {
		return req
	}
	return req.WithContext(auth.ContextWithIdentity(req.Context(), id))
}

func newMiddleware(perms rbac.PermissionSource) rbac.Middleware {
	return rbac.Middleware{
		Permissions: perms,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRequireRoles(t *testing.T) {
	mw := newMiddleware(&stubPermissions{})
	handler := mw.RequireRoles("Admin")(okHandler())

	cases := []struct {
		name     string
		identity *auth.Identity
		want     int
	}{
		{"admin admitted", &auth.Identity{UserID: 1, Roles: []string{"Admin"}}, http.StatusOK},
		{"viewer forbidden", &auth.Identity{UserID: 2, Roles: []string{"Viewer"}}, http.StatusForbidden},
		{"no roles forbidden", &auth.Identity{UserID: 3}, http.StatusForbidden},
		{"no identity forbidden", nil, http.StatusForbidden},
		{"case mismatch forbidden", &auth.Identity{UserID: 4, Roles: []string{"admin"}}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, requestWithIdentity(tc.identity))
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestRequireRolesAnyOf(t *testing.T) {
	mw := newMiddleware(&stubPermissions{})
	handler := mw.RequireRoles("Admin", "Editor")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithIdentity(&auth.Identity{UserID: 1, Roles: []string{"Editor"}}))
	if res.Code != http.StatusOK {
		t.Fatalf("one matching role should admit, got %d", res.Code)
	}
}

func TestRequireAnyPermission(t *testing.T) {
	perms := &stubPermissions{granted: map[int64][]string{
		1: {"users.read", "users.write"},
		2: {"posts.read"},
	}}
	mw := newMiddleware(perms)
	handler := mw.RequireAnyPermission("users.write", "users.admin")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithIdentity(&auth.Identity{UserID: 1}))
	if res.Code != http.StatusOK {
		t.Fatalf("granted permission should admit, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithIdentity(&auth.Identity{UserID: 2}))
	if res.Code != http.StatusForbidden {
		t.Fatalf("missing permission should forbid, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithIdentity(nil))
	if res.Code != http.StatusForbidden {
		t.Fatalf("no identity should forbid, got %d", res.Code)
	}
}

func TestRequireAnyPermissionSourceError(t *testing.T) {
	mw := newMiddleware(&stubPermissions{err: errors.New("store down")})
	handler := mw.RequireAnyPermission("users.read")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithIdentity(&auth.Identity{UserID: 1}))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("source failure should surface as 500, got %d", res.Code)
	}
}
