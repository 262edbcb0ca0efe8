package domain

import "fmt"

// Role is a named permission class. The set is fixed and seeded once;
// this core references roles but never creates them.
type Role string

const (
	RoleSystemAdmin Role = "system-admin"
	RoleOrgAdmin    Role = "org-admin"
	RoleOrgManager  Role = "org-manager"
	RoleUser        Role = "user"
	RoleViewer      Role = "viewer"
	RoleGuest       Role = "guest"
	RoleDemo        Role = "demo"
)

// Roles lists every valid role. Keep in sync with the constants above.
var Roles = []Role{
	RoleSystemAdmin,
	RoleOrgAdmin,
	RoleOrgManager,
	RoleUser,
	RoleViewer,
	RoleGuest,
	RoleDemo,
}

// ParseRole validates a stored or claimed role string against the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string { return string(r) }
