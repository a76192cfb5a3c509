package permissions

import "time"

// Permission represents an atomic capability. Modules is the set of
// application modules the capability belongs to; order never matters and
// duplicates are collapsed before storage.
type Permission struct {
	ID        int64
	Name      string
	Modules   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}
