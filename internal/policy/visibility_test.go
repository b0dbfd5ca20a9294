package policy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/grievance-portal/internal/domain"
)

func sampleGrievances() []domain.Grievance {
	var all []domain.Grievance
	id := int64(1)
	for _, submitter := range []string{"stu-1", "stu-2", "fac-1"} {
		for _, category := range domain.Categories {
			all = append(all, domain.Grievance{
				ID:          id,
				SubmitterID: submitter,
				Category:    category,
				Description: fmt.Sprintf("%s by %s", category, submitter),
				Status:      domain.StatusPending,
			})
			id++
		}
	}
	return all
}

func TestVisibleGrievancesMatchesRule(t *testing.T) {
	all := sampleGrievances()
	viewers := []domain.Identity{
		{ID: "stu-1", Role: domain.RoleStudent},
		{ID: "fac-1", Role: domain.RoleFaculty},
		{ID: "adm-1", Role: domain.RoleAdmin},
		{ID: "sup-1", Role: domain.RoleSuperAdmin},
		{ID: "stu-2", Role: domain.Role("VISITOR")},
	}

	for _, viewer := range viewers {
		t.Run(string(viewer.Role), func(t *testing.T) {
			visible := VisibleGrievances(viewer, all)
			seen := make(map[int64]bool, len(visible))
			for _, g := range visible {
				seen[g.ID] = true
			}

			for _, g := range all {
				var want bool
				switch viewer.Role {
				case domain.RoleAdmin:
					want = true
				case domain.RoleFaculty:
					want = g.Category == domain.CategoryAcademic || g.Category == domain.CategoryFaculty || g.Category == domain.CategoryOther
				default:
					want = g.SubmitterID == viewer.ID
				}
				assert.Equal(t, want, seen[g.ID], "grievance %d (%s by %s)", g.ID, g.Category, g.SubmitterID)
			}
		})
	}
}

func TestVisibleGrievancesAdminKeepsOrder(t *testing.T) {
	all := sampleGrievances()
	visible := VisibleGrievances(domain.Identity{ID: "adm", Role: domain.RoleAdmin}, all)
	assert.Equal(t, all, visible)
}

func TestFacultyVisibilityNormalizesCategory(t *testing.T) {
	faculty := domain.Identity{ID: "fac", Role: domain.RoleFaculty}

	assert.True(t, CanView(faculty, domain.Grievance{Category: "Academic"}))
	assert.True(t, CanView(faculty, domain.Grievance{Category: " other "}))
	assert.False(t, CanView(faculty, domain.Grievance{Category: "Facility"}))
	assert.False(t, CanView(faculty, domain.Grievance{Category: "unknown"}))
}

func TestStudentWithoutIDSeesNothing(t *testing.T) {
	visible := VisibleGrievances(domain.Identity{Role: domain.RoleStudent}, []domain.Grievance{{ID: 1}})
	assert.Empty(t, visible)
}

func TestVisibilityNormalizesViewerRole(t *testing.T) {
	all := sampleGrievances()

	assert.Equal(t, all, VisibleGrievances(domain.Identity{ID: "adm", Role: domain.Role(" admin ")}, all))
	assert.True(t, CanView(domain.Identity{ID: "fac", Role: domain.Role("Faculty")}, domain.Grievance{Category: domain.CategoryAcademic}))
	assert.False(t, CanView(domain.Identity{ID: "fac", Role: domain.Role("Faculty")}, domain.Grievance{Category: domain.CategoryFacility}))
}
