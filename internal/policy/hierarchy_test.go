package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/grievance-portal/internal/domain"
)

func directory() []domain.Identity {
	return []domain.Identity{
		{ID: "sup-1", Role: domain.RoleSuperAdmin},
		{ID: "adm-1", Role: domain.RoleAdmin},
		{ID: "adm-2", Role: domain.RoleAdmin},
		{ID: "fac-1", Role: domain.RoleFaculty},
		{ID: "stu-1", Role: domain.RoleStudent},
		{ID: "stu-2", Role: domain.RoleStudent},
	}
}

func TestSuperAdminManagesOnlyAdmins(t *testing.T) {
	super := domain.Identity{ID: "sup-1", Role: domain.RoleSuperAdmin}

	managed := ManagedIdentities(super, directory())

	assert.Len(t, managed, 2)
	for _, identity := range managed {
		assert.Equal(t, domain.RoleAdmin, identity.Role)
	}
}

func TestAdminManagesStudentsAndFaculty(t *testing.T) {
	adm := domain.Identity{ID: "adm-1", Role: domain.RoleAdmin}

	managed := ManagedIdentities(adm, directory())

	ids := make([]string, 0, len(managed))
	for _, identity := range managed {
		ids = append(ids, identity.ID)
	}
	assert.Equal(t, []string{"fac-1", "stu-1", "stu-2"}, ids)
}

func TestOthersManageNobody(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleStudent, domain.RoleFaculty} {
		assert.Empty(t, ManagedIdentities(domain.Identity{ID: "x", Role: role}, directory()))
		assert.Empty(t, ManageableRoles(role))
	}
}

func TestCanManageNeverSelf(t *testing.T) {
	adm := domain.Identity{ID: "adm-1", Role: domain.RoleAdmin}
	super := domain.Identity{ID: "sup-1", Role: domain.RoleSuperAdmin}

	assert.False(t, CanManage(adm, adm))
	assert.False(t, CanManage(super, super))
	assert.False(t, CanManage(adm, domain.Identity{ID: "adm-2", Role: domain.RoleAdmin}))
}

func TestCheckRoleChange(t *testing.T) {
	super := domain.Identity{ID: "sup-1", Role: domain.RoleSuperAdmin}
	adm := domain.Identity{ID: "adm-1", Role: domain.RoleAdmin}
	stu := domain.Identity{ID: "stu-1", Role: domain.RoleStudent}
	otherAdmin := domain.Identity{ID: "adm-2", Role: domain.RoleAdmin}

	tests := []struct {
		name   string
		actor  domain.Identity
		target domain.Identity
		next   domain.Role
		ok     bool
	}{
		{"admin swaps student to faculty", adm, stu, domain.RoleFaculty, true},
		{"admin cannot promote to admin", adm, stu, domain.RoleAdmin, false},
		{"admin cannot touch admins", adm, otherAdmin, domain.RoleStudent, false},
		{"super promotes student", super, stu, domain.RoleAdmin, true},
		{"super demotes admin", super, otherAdmin, domain.RoleFaculty, true},
		{"nobody grants super admin", super, otherAdmin, domain.RoleSuperAdmin, false},
		{"no self change", adm, adm, domain.RoleStudent, false},
		{"unknown role", super, stu, domain.Role("DEAN"), false},
		{"student has no authority", stu, domain.Identity{ID: "stu-2", Role: domain.RoleStudent}, domain.RoleFaculty, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRoleChange(tt.actor, tt.target, tt.next)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestCanSubmit(t *testing.T) {
	assert.True(t, CanSubmit(domain.RoleStudent))
	assert.True(t, CanSubmit(domain.RoleFaculty))
	assert.False(t, CanSubmit(domain.RoleAdmin))
	assert.False(t, CanSubmit(domain.RoleSuperAdmin))
}
