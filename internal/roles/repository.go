package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-admin/aegis-admin/internal/platform/db"
	"github.com/aegis-admin/aegis-admin/internal/platform/httpx"
)

// RepositoryPort defines data access methods for role administration.
type RepositoryPort interface {
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, id int64) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, name string, permissionIDs []int64) (*Role, error)
	Update(ctx context.Context, id int64, name string, permissionIDs []int64, replacePermissions bool) (*Role, error)
	Delete(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all roles with their permission references.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	index := make(map[int64]int)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Permissions = []PermissionRef{}
		index[role.ID] = len(roles)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	permRows, err := r.pool.Query(ctx,
		`SELECT rp.role_id, p.id, p.name FROM role_has_permissions rp
		 JOIN permissions p ON p.id = rp.permission_id ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()
	for permRows.Next() {
		var roleID int64
		var ref PermissionRef
		if err := permRows.Scan(&roleID, &ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		if i, ok := index[roleID]; ok {
			roles[i].Permissions = append(roles[i].Permissions, ref)
		}
	}
	return roles, permRows.Err()
}

// Get fetches a role with its permissions.
func (r *Repository) Get(ctx context.Context, id int64) (*Role, error) {
	return r.fetch(ctx, `SELECT id, name, created_at, updated_at FROM roles WHERE id = $1`, id)
}

// GetByName fetches a role by its unique name.
func (r *Repository) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.fetch(ctx, `SELECT id, name, created_at, updated_at FROM roles WHERE name = $1`, name)
}

func (r *Repository) fetch(ctx context.Context, query string, arg any) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	role.Permissions, err = r.permissionsFor(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Create inserts a role and attaches its permissions in one transaction.
func (r *Repository) Create(ctx context.Context, name string, permissionIDs []int64) (*Role, error) {
	var created Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO roles (name) VALUES ($1) RETURNING id, name, created_at, updated_at`, name).
			Scan(&created.ID, &created.Name, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			return mapRoleWriteErr(err)
		}
		return attachPermissions(ctx, tx, created.ID, permissionIDs)
	})
	if err != nil {
		return nil, err
	}
	created.Permissions, err = r.permissionsFor(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces the role name and, when requested, its permission set.
// The delete-old plus insert-new runs in a single transaction so a partial
// failure can never leave the role over- or under-privileged.
func (r *Repository) Update(ctx context.Context, id int64, name string, permissionIDs []int64, replacePermissions bool) (*Role, error) {
	var updated Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE roles SET name = $2, updated_at = NOW() WHERE id = $1
			 RETURNING id, name, created_at, updated_at`, id, name).
			Scan(&updated.ID, &updated.Name, &updated.CreatedAt, &updated.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return httpx.ErrNotFound
			}
			return mapRoleWriteErr(err)
		}
		if !replacePermissions {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_has_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		return attachPermissions(ctx, tx, id, permissionIDs)
	})
	if err != nil {
		return nil, err
	}
	updated.Permissions, err = r.permissionsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a role. Association rows in role_has_permissions and
// user_has_roles are removed by the foreign key cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *Repository) permissionsFor(ctx context.Context, roleID int64) ([]PermissionRef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name FROM permissions p
		 JOIN role_has_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = $1 ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refs := []PermissionRef{}
	for rows.Next() {
		var ref PermissionRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func attachPermissions(ctx context.Context, tx pgx.Tx, roleID int64, permissionIDs []int64) error {
	for _, permID := range permissionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_has_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			roleID, permID); err != nil {
			return mapRoleWriteErr(err)
		}
	}
	return nil
}

func mapRoleWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("roles: name taken: %w", httpx.ErrConflict)
		case "23503":
			return fmt.Errorf("roles: one or more permissions are invalid: %w", httpx.ErrValidation)
		}
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
