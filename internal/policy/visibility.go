// Package policy holds the pure authorization rules of the portal: who sees
// which grievance, who may move it, and who may manage whom.
package policy

import "github.com/spec-kit/grievance-portal/internal/domain"

var facultyCategories = map[domain.Category]struct{}{
	domain.CategoryAcademic: {},
	domain.CategoryFaculty:  {},
	domain.CategoryOther:    {},
}

// FacultyManages reports whether faculty may see and resolve grievances in c.
func FacultyManages(c domain.Category) bool {
	normalized, ok := domain.ParseCategory(string(c))
	if !ok {
		return false
	}
	_, managed := facultyCategories[normalized]
	return managed
}

// CanView reports whether viewer may see g. Roles without a rule of their
// own, SUPER_ADMIN included, are scoped like students.
func CanView(viewer domain.Identity, g domain.Grievance) bool {
	switch roleOf(viewer) {
	case domain.RoleAdmin:
		return true
	case domain.RoleFaculty:
		return FacultyManages(g.Category)
	default:
		return viewer.ID != "" && g.SubmitterID == viewer.ID
	}
}

// VisibleGrievances narrows all to what viewer may see, keeping input order.
func VisibleGrievances(viewer domain.Identity, all []domain.Grievance) []domain.Grievance {
	visible := make([]domain.Grievance, 0, len(all))
	for _, g := range all {
		if CanView(viewer, g) {
			visible = append(visible, g)
		}
	}
	return visible
}
