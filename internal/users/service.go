package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aegis-admin/aegis-admin/internal/audit"
	"github.com/aegis-admin/aegis-admin/internal/platform/httpx"
)

// Hasher derives password hashes for administratively created accounts.
type Hasher interface {
	Hash(plaintext string) (string, error)
}

// Invalidator drops cached authorization data after assignment changes.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// AuditPort records administrative mutations, best effort.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service handles user administration logic.
type Service struct {
	repo        RepositoryPort
	hasher      Hasher
	invalidator Invalidator
	audit       AuditPort
	logger      *slog.Logger
}

// NewService builds a Service instance. Invalidator and audit may be nil.
func NewService(repo RepositoryPort, hasher Hasher, invalidator Invalidator, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, hasher: hasher, invalidator: invalidator, audit: auditor, logger: logger}
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// CreateInput describes an administrative user creation.
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Roles    []string
}

// Create validates the role names, hashes the password and persists the
// account with its assignments.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateInput) (*User, error) {
	if len(input.Password) < 6 {
		return nil, fmt.Errorf("users: password must be at least 6 characters: %w", httpx.ErrValidation)
	}
	roleIDs, err := s.resolveRoles(ctx, input.Roles)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.Create(ctx, input.Name, input.Email, hash, roleIDs)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "users.create", user.ID, map[string]any{"email": user.Email})
	return user, nil
}

// UpdateInput carries an administrative profile update. Empty fields keep
// their current value.
type UpdateInput struct {
	Name  string
	Email string
}

// Update merges the input over the stored record.
func (s *Service) Update(ctx context.Context, actorID, id int64, input UpdateInput) (*User, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name := current.Name
	if input.Name != "" {
		name = input.Name
	}
	email := current.Email
	if input.Email != "" {
		email = input.Email
	}
	user, err := s.repo.Update(ctx, id, name, email)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "users.update", id, nil)
	return user, nil
}

// Delete removes the account.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, id)
	}
	s.record(ctx, actorID, "users.delete", id, nil)
	return nil
}

// AssignRoles replaces the user's role set with the named roles. Unknown
// role names reject the whole assignment.
func (s *Service) AssignRoles(ctx context.Context, actorID, userID int64, roleNames []string) (*User, error) {
	roleIDs, err := s.resolveRoles(ctx, roleNames)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceRoles(ctx, userID, roleIDs); err != nil {
		return nil, err
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, userID)
	}
	s.record(ctx, actorID, "users.assign_roles", userID, map[string]any{"roles": roleNames})
	return s.repo.Get(ctx, userID)
}

func (s *Service) resolveRoles(ctx context.Context, names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	found, err := s.repo.RoleIDsByNames(ctx, names)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, ok := found[name]
		if !ok {
			return nil, fmt.Errorf("users: one or more roles are invalid: %w", httpx.ErrValidation)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
