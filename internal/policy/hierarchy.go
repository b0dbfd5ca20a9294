package policy

import (
	"errors"

	"github.com/spec-kit/grievance-portal/internal/domain"
)

// ErrForbidden means the target identity is outside the actor's authority.
var ErrForbidden = errors.New("identity outside actor's authority")

var manageable = map[domain.Role][]domain.Role{
	domain.RoleSuperAdmin: {domain.RoleAdmin},
	domain.RoleAdmin:      {domain.RoleStudent, domain.RoleFaculty},
}

var rank = map[domain.Role]int{
	domain.RoleStudent:    1,
	domain.RoleFaculty:    1,
	domain.RoleAdmin:      2,
	domain.RoleSuperAdmin: 3,
}

// ManageableRoles returns the roles actor may list and delete.
func ManageableRoles(actor domain.Role) []domain.Role {
	return append([]domain.Role(nil), manageable[actor]...)
}

// CanManage reports whether actor may delete target. Nobody manages
// themselves.
func CanManage(actor, target domain.Identity) bool {
	if actor.ID == target.ID {
		return false
	}
	for _, role := range manageable[actor.Role] {
		if role == target.Role {
			return true
		}
	}
	return false
}

// ManagedIdentities narrows all to the identities actor manages.
func ManagedIdentities(actor domain.Identity, all []domain.Identity) []domain.Identity {
	managed := make([]domain.Identity, 0, len(all))
	for _, identity := range all {
		if CanManage(actor, identity) {
			managed = append(managed, identity)
		}
	}
	return managed
}

// CheckRoleChange validates actor moving target to next. The actor must
// outrank both the current and the new role, so SUPER_ADMIN can never be
// granted and admins can only swap students and faculty.
func CheckRoleChange(actor, target domain.Identity, next domain.Role) error {
	if actor.ID == target.ID {
		return ErrForbidden
	}
	if !next.Valid() || next == domain.RoleSuperAdmin {
		return ErrForbidden
	}
	actorRank := rank[actor.Role]
	if actorRank <= rank[target.Role] || actorRank <= rank[next] {
		return ErrForbidden
	}
	return nil
}

// CanSubmit reports whether role may raise grievances.
func CanSubmit(role domain.Role) bool {
	return role == domain.RoleStudent || role == domain.RoleFaculty
}

// SelfRegistrable reports whether role may be chosen at sign-up.
func SelfRegistrable(role domain.Role) bool {
	return CanSubmit(role)
}
