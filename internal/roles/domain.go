package roles

import "time"

// Role represents a role for administration.
type Role struct {
	ID          int64
	Name        string
	Permissions []PermissionRef
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PermissionRef is a permission reference attached to a role.
type PermissionRef struct {
	ID   int64
	Name string
}
