package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aegis-admin/aegis-admin/internal/audit"
	"github.com/aegis-admin/aegis-admin/internal/platform/httpx"
)

// Invalidator drops cached authorization data after permission-set writes.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// AuditPort records administrative mutations, best effort.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service handles role administration logic.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	audit       AuditPort
	logger      *slog.Logger
}

// NewService builds a Service instance. Invalidator and audit may be nil.
func NewService(repo RepositoryPort, invalidator Invalidator, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, audit: auditor, logger: logger}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// Get returns one role.
func (s *Service) Get(ctx context.Context, id int64) (*Role, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a new role with the given permission ids.
func (s *Service) Create(ctx context.Context, actorID int64, name string, permissionIDs []int64) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("roles: name required: %w", httpx.ErrValidation)
	}
	role, err := s.repo.Create(ctx, name, permissionIDs)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "roles.create", role.ID, map[string]any{"name": name})
	return role, nil
}

// UpdateInput carries a role update. PermissionIDs replaces the whole
// association set when non-nil; a nil slice leaves it untouched.
type UpdateInput struct {
	Name          string
	PermissionIDs []int64
	ReplacePerms  bool
}

// Update modifies name and/or the permission set.
func (s *Service) Update(ctx context.Context, actorID, id int64, input UpdateInput) (*Role, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name := current.Name
	if trimmed := strings.TrimSpace(input.Name); trimmed != "" {
		name = trimmed
	}
	role, err := s.repo.Update(ctx, id, name, input.PermissionIDs, input.ReplacePerms)
	if err != nil {
		return nil, err
	}
	// The role's grant set changed for every holder; flush the cache.
	if s.invalidator != nil && input.ReplacePerms {
		s.invalidator.Invalidate(ctx, -1)
	}
	s.record(ctx, actorID, "roles.update", id, nil)
	return role, nil
}

// Delete removes the role and, through the storage cascade, all of its
// association rows.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, -1)
	}
	s.record(ctx, actorID, "roles.delete", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
