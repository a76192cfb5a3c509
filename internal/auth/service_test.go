package auth_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-admin/aegis-admin/internal/auth"
	"github.com/aegis-admin/aegis-admin/internal/platform/httpx"
	_ "github.com/aegis-admin/aegis-admin/testing"
)

type stubRepo struct {
	users     map[int64]*auth.User
	roles     map[int64][]string
	nextID    int64
	createErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: map[int64]*auth.User{}, roles: map[int64][]string{}, nextID: 1}
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, httpx.ErrNotFound
}

func (s *stubRepo) CreateUser(ctx context.Context, name, email, passwordHash string) (*auth.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if _, err := s.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email taken: %w", httpx.ErrConflict)
	}
	user := &auth.User{ID: s.nextID, Name: name, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.users[user.ID] = user
	s.nextID++
	return user, nil
}

func (s *stubRepo) RoleNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	return s.roles[userID], nil
}

func (s *stubRepo) addUser(t *testing.T, email, password string, roles ...string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user, err := s.CreateUser(context.Background(), "Test User", email, string(hashed))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	s.roles[user.ID] = roles
	return user
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(repo auth.Repository) *auth.Service {
	tokens := auth.NewTokenService("test-secret", time.Hour)
	return auth.NewService(repo, auth.NewHasher(bcrypt.MinCost), tokens, nil, discardLogger())
}

func TestLoginSuccess(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(t, "admin@test.local", "correctpass", "Admin")
	svc := newService(repo)

	session, err := svc.Login(context.Background(), "admin@test.local", "correctpass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Token == "" {
		t.Fatalf("expected a token")
	}
	if len(session.Roles) != 1 || session.Roles[0] != "Admin" {
		t.Fatalf("expected Admin role snapshot, got %v", session.Roles)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(t, "admin@test.local", "correctpass")
	svc := newService(repo)

	if _, err := svc.Login(context.Background(), "admin@test.local", "wrongpass"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newService(newStubRepo())

	if _, err := svc.Login(context.Background(), "nobody@test.local", "whatever"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterShortPasswordSkipsRepo(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)

	_, err := svc.Register(context.Background(), "New User", "new@test.local", "short")
	if !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.users) != 0 {
		t.Fatalf("no user should be created for a rejected password")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(t, "taken@test.local", "correctpass")
	svc := newService(repo)

	if _, err := svc.Register(context.Background(), "Dup", "taken@test.local", "longenough"); !errors.Is(err, httpx.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterStoresHashNotPlaintext(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)

	session, err := svc.Register(context.Background(), "New User", "new@test.local", "longenough")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	stored := repo.users[session.User.ID]
	if stored.PasswordHash == "longenough" {
		t.Fatalf("plaintext password stored")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("longenough")) != nil {
		t.Fatalf("stored hash does not match original password")
	}
}

func TestAuthenticateRoundTrip(t *testing.T) {
	repo := newStubRepo()
	user := repo.addUser(t, "admin@test.local", "correctpass", "Admin")
	svc := newService(repo)

	session, err := svc.Login(context.Background(), "admin@test.local", "correctpass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	identity, err := svc.Authenticate(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.UserID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, identity.UserID)
	}
	if !identity.HasRole("Admin") {
		t.Fatalf("expected Admin role on identity")
	}
}

func TestAuthenticateDeletedUser(t *testing.T) {
	repo := newStubRepo()
	user := repo.addUser(t, "admin@test.local", "correctpass")
	svc := newService(repo)

	session, err := svc.Login(context.Background(), "admin@test.local", "correctpass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	delete(repo.users, user.ID)

	if _, err := svc.Authenticate(context.Background(), session.Token); !errors.Is(err, httpx.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for deleted user, got %v", err)
	}
}

func TestAuthenticateRolesSnapshotIsStale(t *testing.T) {
	repo := newStubRepo()
	user := repo.addUser(t, "admin@test.local", "correctpass", "Viewer")
	svc := newService(repo)

	session, err := svc.Login(context.Background(), "admin@test.local", "correctpass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Role change after issuance does not surface until re-login.
	repo.roles[user.ID] = []string{"Admin"}

	identity, err := svc.Authenticate(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.HasRole("Admin") || !identity.HasRole("Viewer") {
		t.Fatalf("expected stale Viewer snapshot, got %v", identity.Roles)
	}

	fresh, err := svc.Login(context.Background(), "admin@test.local", "correctpass")
	if err != nil {
		t.Fatalf("re-login: %v", err)
	}
	refreshed, err := svc.Authenticate(context.Background(), fresh.Token)
	if err != nil {
		t.Fatalf("authenticate fresh: %v", err)
	}
	if !refreshed.HasRole("Admin") {
		t.Fatalf("fresh token should carry the new role, got %v", refreshed.Roles)
	}
}

func TestAuthenticateGarbageToken(t *testing.T) {
	svc := newService(newStubRepo())
	if _, err := svc.Authenticate(context.Background(), "garbage"); !errors.Is(err, httpx.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
