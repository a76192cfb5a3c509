package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aegis-admin/aegis-admin/internal/audit"
	"github.com/aegis-admin/aegis-admin/internal/platform/httpx"
)

// ErrInvalidCredentials indicates login failure. The message is the same
// whether the email is unknown or the password mismatched.
var ErrInvalidCredentials = errors.New("invalid credentials")

// MinPasswordLength is enforced before any hashing work happens.
const MinPasswordLength = 6

// AuditPort records security-relevant events, best effort.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Session is the result of a successful login or registration.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
	Roles     []string
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	hasher Hasher
	tokens *TokenService
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs a new Service. The audit port may be nil.
func NewService(repo Repository, hasher Hasher, tokens *TokenService, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, hasher: hasher, tokens: tokens, audit: auditor, logger: logger}
}

// Login validates credentials and issues a bearer token carrying the
// user's current role names.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: login lookup: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issueSession(ctx, user, "auth.login")
}

// Register creates a new account and issues a token immediately, matching
// the login response shape.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("auth: password must be at least %d characters: %w", MinPasswordLength, httpx.ErrValidation)
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.CreateUser(ctx, name, email, hashed)
	if err != nil {
		return nil, err
	}
	return s.issueSession(ctx, user, "auth.register")
}

// Authenticate verifies a bearer token and resolves the identity it names.
// The role snapshot comes from the token; the user record itself is loaded
// fresh so a deleted account is rejected immediately.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if s.logger != nil {
			s.logger.Debug("token rejected", slog.Any("error", err))
		}
		return nil, httpx.ErrUnauthenticated
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, httpx.ErrUnauthenticated
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, httpx.ErrUnauthenticated
		}
		return nil, fmt.Errorf("auth: authenticate lookup: %w", err)
	}
	return &Identity{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Roles:  claims.Roles,
	}, nil
}

func (s *Service) issueSession(ctx context.Context, user *User, action string) (*Session, error) {
	roles, err := s.repo.RoleNamesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth: load roles: %w", err)
	}
	token, expiresAt, err := s.tokens.Issue(user.ID, roles)
	if err != nil {
		return nil, err
	}
	s.record(ctx, user.ID, action, user.Email)
	return &Session{Token: token, ExpiresAt: expiresAt, User: user, Roles: roles}, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, email string) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", actorID),
		Meta:     map[string]any{"email": email},
		At:       time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
