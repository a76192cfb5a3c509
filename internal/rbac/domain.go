// Package rbac holds the authorization decision logic: the entity graph
// linking users to roles to permissions, and the engine deciding whether a
// subject may act.
package rbac

import "time"

// Role is a named grouping of permissions.
type Role struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Permission is an atomic capability tagged with the modules it belongs to.
type Permission struct {
	ID        int64
	Name      string
	Modules   []string
	CreatedAt time.Time
}

// RolePermission is the normalized many-to-many join between roles and
// permissions. A (role, permission) pair appears at most once.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
}

// UserRole links a user to a role.
type UserRole struct {
	UserID int64
	RoleID int64
}
