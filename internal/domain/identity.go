package domain

import "time"

// Role is the authorization role of a portal identity.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleFaculty    Role = "FACULTY"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Roles lists every role in ascending authority.
var Roles = []Role{RoleStudent, RoleFaculty, RoleAdmin, RoleSuperAdmin}

// ParseRole normalizes raw into a known role.
func ParseRole(raw string) (Role, bool) {
	return matchEnum(raw, Roles)
}

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	return isKnown(r, Roles)
}

// Identity is an authenticated portal user.
type Identity struct {
	ID           string
	Name         string
	Email        string
	Role         Role
	AvatarRef    *string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
