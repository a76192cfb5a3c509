package users

import "time"

// User represents a user account for administration. The password hash is
// deliberately absent; only the auth module reads it.
type User struct {
	ID        int64
	Name      string
	Email     string
	Roles     []RoleRef
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleRef is a role reference attached to a user listing.
type RoleRef struct {
	ID   int64
	Name string
}
