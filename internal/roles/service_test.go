package roles_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aegis-admin/aegis-admin/internal/platform/httpx"
	"github.com/aegis-admin/aegis-admin/internal/roles"
	_ "github.com/aegis-admin/aegis-admin/testing"
)

type fakeRepo struct {
	roles  map[int64]*roles.Role
	perms  map[int64][]int64
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{roles: map[int64]*roles.Role{}, perms: map[int64][]int64{}, nextID: 1}
}

func (f *fakeRepo) List(ctx context.Context) ([]roles.Role, error) {
	out := make([]roles.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (*roles.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeRepo) GetByName(ctx context.Context, name string) (*roles.Role, error) {
	for _, r := range f.roles {
		if r.Name == name {
			copied := *r
			return &copied, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (f *fakeRepo) Create(ctx context.Context, name string, permissionIDs []int64) (*roles.Role, error) {
	if _, err := f.GetByName(ctx, name); err == nil {
		return nil, fmt.Errorf("name taken: %w", httpx.ErrConflict)
	}
	r := &roles.Role{ID: f.nextID, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.roles[r.ID] = r
	f.perms[r.ID] = permissionIDs
	f.nextID++
	return r, nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, name string, permissionIDs []int64, replacePermissions bool) (*roles.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	r.Name = name
	if replacePermissions {
		f.perms[id] = permissionIDs
	}
	copied := *r
	return &copied, nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.roles[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(f.roles, id)
	delete(f.perms, id)
	return nil
}

type spyInvalidator struct {
	calls []int64
}

func (s *spyInvalidator) Invalidate(ctx context.Context, userID int64) {
	s.calls = append(s.calls, userID)
}

func newService(repo *fakeRepo, inv *spyInvalidator) *roles.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return roles.NewService(repo, inv, nil, logger)
}

func TestCreateRole(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, nil)

	role, err := svc.Create(context.Background(), 1, "Editor", []int64{10, 11})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := repo.perms[role.ID]; len(got) != 2 {
		t.Fatalf("permissions not attached: %v", got)
	}
}

func TestCreateRoleBlankName(t *testing.T) {
	svc := newService(newFakeRepo(), nil)
	if _, err := svc.Create(context.Background(), 1, "   ", nil); !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateRoleDuplicateName(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, nil)

	if _, err := svc.Create(context.Background(), 1, "Editor", nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(context.Background(), 1, "Editor", nil); !errors.Is(err, httpx.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateReplacePermissionsFlushesCache(t *testing.T) {
	repo := newFakeRepo()
	inv := &spyInvalidator{}
	svc := newService(repo, inv)

	role, err := svc.Create(context.Background(), 1, "Editor", []int64{10})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Update(context.Background(), 1, role.ID, roles.UpdateInput{PermissionIDs: []int64{11, 12}, ReplacePerms: true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := repo.perms[role.ID]; len(got) != 2 || got[0] != 11 {
		t.Fatalf("permission set not replaced: %v", got)
	}
	if len(inv.calls) != 1 || inv.calls[0] != -1 {
		t.Fatalf("expected one full-cache flush, got %v", inv.calls)
	}
}

func TestUpdateNameOnlyKeepsPermissions(t *testing.T) {
	repo := newFakeRepo()
	inv := &spyInvalidator{}
	svc := newService(repo, inv)

	role, err := svc.Create(context.Background(), 1, "Editor", []int64{10})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(context.Background(), 1, role.ID, roles.UpdateInput{Name: "Writer"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Writer" {
		t.Fatalf("name not updated: %q", updated.Name)
	}
	if got := repo.perms[role.ID]; len(got) != 1 || got[0] != 10 {
		t.Fatalf("permission set must be untouched: %v", got)
	}
	if len(inv.calls) != 0 {
		t.Fatalf("name-only change should not flush the cache: %v", inv.calls)
	}
}

func TestDeleteRoleFlushesCache(t *testing.T) {
	repo := newFakeRepo()
	inv := &spyInvalidator{}
	svc := newService(repo, inv)

	role, err := svc.Create(context.Background(), 1, "Editor", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), 1, role.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), role.ID); !errors.Is(err, httpx.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if len(inv.calls) != 1 || inv.calls[0] != -1 {
		t.Fatalf("expected full-cache flush, got %v", inv.calls)
	}
}

func TestDeleteMissingRole(t *testing.T) {
	svc := newService(newFakeRepo(), nil)
	if err := svc.Delete(context.Background(), 1, 404); !errors.Is(err, httpx.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
