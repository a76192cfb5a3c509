package users

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

// RepositoryPort defines data access methods for user administration.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, name, email, passwordHash string, roleIDs []int64) (*User, error)
	Update(ctx context.Context, id int64, name, email string) (*User, error)
	Delete(ctx context.Context, id int64) error
	ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error
	RoleIDsByNames(ctx context.Context, names []string) (map[string]int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all users with their role references.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, created_at, updated_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	index := make(map[int64]int)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		user.Roles = []RoleRef{}
		index[user.ID] = len(users)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	roleRows, err := r.pool.Query(ctx,
		`SELECT ur.user_id, ro.id, ro.name FROM user_has_roles ur
		 JOIN roles ro ON ro.id = ur.role_id ORDER BY ro.name`)
	if err != nil {
		return nil, err
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var userID int64
		var ref RoleRef
		if err := roleRows.Scan(&userID, &ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		if i, ok := index[userID]; ok {
			users[i].Roles = append(users[i].Roles, ref)
		}
	}
	return users, roleRows.Err()
}

// Get fetches one user with roles.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, created_at, updated_at FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	user.Roles, err = r.rolesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a user and its role assignments in one transaction.
func (r *Repository) Create(ctx context.Context, name, email, passwordHash string, roleIDs []int64) (*User, error) {
	var created User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3)
			 RETURNING id, name, email, created_at, updated_at`,
			name, email, passwordHash).
			Scan(&created.ID, &created.Name, &created.Email, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			return mapUserWriteErr(err)
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_has_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				created.ID, roleID); err != nil {
				return mapUserWriteErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	created.Roles, err = r.rolesFor(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces name and email.
func (r *Repository) Update(ctx context.Context, id int64, name, email string) (*User, error) {
	var updated User
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET name = $2, email = $3, updated_at = NOW() WHERE id = $1
		 RETURNING id, name, email, created_at, updated_at`,
		id, name, email).
		Scan(&updated.ID, &updated.Name, &updated.Email, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, mapUserWriteErr(err)
	}
	updated.Roles, err = r.rolesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the user record. Role assignments go with it via the
// foreign key cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ReplaceRoles swaps the user's role set atomically.
func (r *Repository) ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return httpx.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_has_roles WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_has_roles (user_id, role_id) VALUES ($1, $2)`,
				userID, roleID); err != nil {
				return mapUserWriteErr(err)
			}
		}
		return nil
	})
}

// RoleIDsByNames resolves role names to ids for assignment validation.
func (r *Repository) RoleIDsByNames(ctx context.Context, names []string) (map[string]int64, error) {
	if len(names) == 0 {
		return map[string]int64{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM roles WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64, len(names))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

func (r *Repository) rolesFor(ctx context.Context, userID int64) ([]RoleRef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ro.id, ro.name FROM roles ro
		 JOIN user_has_roles ur ON ur.role_id = ro.id
		 WHERE ur.user_id = $1 ORDER BY ro.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refs := []RoleRef{}
	for rows.Next() {
		var ref RoleRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func mapUserWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("users: email taken: %w", httpx.ErrConflict)
		case "23503":
			return fmt.Errorf("users: one or more roles are invalid: %w", httpx.ErrValidation)
		}
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
