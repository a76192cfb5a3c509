package auth

import "time"

// User is the account record backing authentication flows. The password
// hash never leaves this package except through the repository.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the resolved actor attached to an admitted request. Roles
// holds the role names snapshotted into the token at issuance; role
// changes made after issuance surface only once the user logs in again.
type Identity struct {
	UserID int64
	Name   string
	Email  string
	Roles  []string
}

// HasRole reports whether the identity carries the exact role name.
func (id Identity) HasRole(name string) bool {
	for _, r := range id.Roles {
		if r == name {
			return true
		}
	}
	return false
}
