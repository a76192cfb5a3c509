package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aegis-admin/aegis-admin/internal/audit"
	"github.com/aegis-admin/aegis-admin/internal/platform/httpx"
)

// Invalidator drops cached authorization data after permission writes.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// AuditPort records administrative mutations, best effort.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service handles permission administration logic.
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

// List returns all permissions.
func (s *Service) List(ctx context.Context) ([]Permission, error) {
	return s.repo.List(ctx)
}

// Get returns one permission.
func (s *Service) Get(ctx context.Context, id int64) (*Permission, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a new permission with a normalized module set.
func (s *Service) Create(ctx context.Context, actorID int64, name string, modules []string) (*Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("permissions: name required: %w", httpx.ErrValidation)
	}
	normalized := normalizeModules(modules)
	if len(normalized) == 0 {
		return nil, fmt.Errorf("permissions: at least one module required: %w", httpx.ErrValidation)
	}
	perm, err := s.repo.Create(ctx, name, normalized)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "permissions.create", perm.ID, map[string]any{"name": name})
	return perm, nil
}

// Update merges the input over the stored record; empty fields keep their
// current value.
func (s *Service) Update(ctx context.Context, actorID, id int64, name string, modules []string) (*Permission, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		current.Name = trimmed
	}
	if normalized := normalizeModules(modules); len(normalized) > 0 {
		current.Modules = normalized
	}
	perm, err := s.repo.Update(ctx, id, current.Name, current.Modules)
	if err != nil {
		return nil, err
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, -1)
	}
	s.record(ctx, actorID, "permissions.update", id, nil)
	return perm, nil
}

// Delete removes the permission; its association rows go with it.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, -1)
	}
	s.record(ctx, actorID, "permissions.delete", id, nil)
	return nil
}

// normalizeModules trims, drops empties, dedupes and sorts so the stored
// value behaves as a set.
func normalizeModules(modules []string) []string {
	seen := make(map[string]struct{}, len(modules))
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   "permission",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
