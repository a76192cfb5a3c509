package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service materializes the authorization graph for a subject. Reads go to
// PostgreSQL; effective permission sets are cached in Redis briefly.
type Service struct {
	pool  *pgxpool.Pool
	cache *Cache
}

// NewService constructs a Service backed by the provided pool. The cache
// may be nil.
func NewService(pool *pgxpool.Pool, cache *Cache) *Service {
	return &Service{pool: pool, cache: cache}
}

// LoadRolesForUser returns the roles currently assigned to a user.
func (s *Service) LoadRolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ro.id, ro.name, ro.created_at FROM roles ro
		 JOIN user_has_roles ur ON ur.role_id = ro.id
		 WHERE ur.user_id = $1 ORDER BY ro.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// RoleNamesForUser returns just the role names, freshly loaded.
func (s *Service) RoleNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	roles, err := s.LoadRolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.Name
	}
	return names, nil
}

// LoadPermissionsForRole returns the permissions associated with a role.
func (s *Service) LoadPermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.name, p.modules, p.created_at FROM permissions p
		 JOIN role_has_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = $1 ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Modules, &perm.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// EffectivePermissions returns deduplicated permission names granted to a
// user through any held role.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if perms, ok := s.cache.Get(ctx, userID); ok {
		return perms, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT p.name FROM permissions p
		 JOIN role_has_permissions rp ON rp.permission_id = p.id
		 JOIN user_has_roles ur ON ur.role_id = rp.role_id
		 WHERE ur.user_id = $1 ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.cache.Set(ctx, userID, perms)
	return perms, nil
}

// HasPermission reports whether any role held by the user grants the
// named permission. This is the permission-level primitive; route
// admission itself is decided on roles.
func (s *Service) HasPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	perms, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return HasPermission(perms, permission), nil
}

// Invalidate drops cached permission data after a write. userID < 0 flushes
// the whole namespace.
func (s *Service) Invalidate(ctx context.Context, userID int64) {
	if userID < 0 {
		s.cache.InvalidateAll(ctx)
		return
	}
	s.cache.InvalidateUser(ctx, userID)
}
