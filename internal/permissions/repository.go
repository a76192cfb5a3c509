package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-admin/aegis-admin/internal/platform/httpx"
)

// RepositoryPort defines data access methods for permissions.
type RepositoryPort interface {
	List(ctx context.Context) ([]Permission, error)
	Get(ctx context.Context, id int64) (*Permission, error)
	GetByName(ctx context.Context, name string) (*Permission, error)
	Create(ctx context.Context, name string, modules []string) (*Permission, error)
	Update(ctx context.Context, id int64, name string, modules []string) (*Permission, error)
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

const permissionColumns = `id, name, modules, created_at, updated_at`

func scanPermission(row pgx.Row) (*Permission, error) {
	var perm Permission
	if err := row.Scan(&perm.ID, &perm.Name, &perm.Modules, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &perm, nil
}

// List returns all permissions ordered by name.
func (r *Repository) List(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Modules, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// Get fetches a permission by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
}

// GetByName fetches a permission by its unique name.
func (r *Repository) GetByName(ctx context.Context, name string) (*Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE name = $1`, name))
}

// Create inserts a permission. Name uniqueness rests on the unique index.
func (r *Repository) Create(ctx context.Context, name string, modules []string) (*Permission, error) {
	perm, err := scanPermission(r.pool.QueryRow(ctx,
		`INSERT INTO permissions (name, modules) VALUES ($1, $2) RETURNING `+permissionColumns,
		name, modules))
	if err != nil {
		return nil, mapPermissionWriteErr(err)
	}
	return perm, nil
}

// Update replaces name and module set.
func (r *Repository) Update(ctx context.Context, id int64, name string, modules []string) (*Permission, error) {
	perm, err := scanPermission(r.pool.QueryRow(ctx,
		`UPDATE permissions SET name = $2, modules = $3, updated_at = NOW() WHERE id = $1
		 RETURNING `+permissionColumns,
		id, name, modules))
	if err != nil {
		return nil, mapPermissionWriteErr(err)
	}
	return perm, nil
}

// Delete removes a permission. Association rows in role_has_permissions
// are removed by the foreign key cascade, so no role keeps a dangling
// reference.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func mapPermissionWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("permissions: name taken: %w", httpx.ErrConflict)
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
