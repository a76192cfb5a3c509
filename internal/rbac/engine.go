package rbac

// Decision is the terminal outcome of an authorization check.
type Decision int

const (
	// Deny rejects the request.
	Deny Decision = iota
	// Admit allows the request through.
	Admit
)

// Authorize admits when the subject holds at least one of the required
// role names. Matching is exact and case sensitive. An empty requirement
// admits everyone; a subject with no roles is denied any non-empty
// requirement. Unknown role references simply fail to match.
func Authorize(held []string, required []string) Decision {
	if len(required) == 0 {
		return Admit
	}
	if len(held) == 0 {
		return Deny
	}
	set := make(map[string]struct{}, len(held))
	for _, name := range held {
		set[name] = struct{}{}
	}
	for _, name := range required {
		if _, ok := set[name]; ok {
			return Admit
		}
	}
	return Deny
}

// HasPermission reports whether the granted permission set names the
// permission. Granted is the union over all roles the subject holds.
func HasPermission(granted []string, name string) bool {
	for _, p := range granted {
		if p == name {
			return true
		}
	}
	return false
}
