package client

import (
	"context"
	"strings"

	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/policy"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

// View names the dashboard layout shown to a role.
type View string

const (
	ViewStudent View = "student"
	ViewFaculty View = "faculty"
	ViewAdmin   View = "admin"
)

// ViewFor picks the layout for role. Unknown roles get the student view.
func ViewFor(role domain.Role) View {
	switch role {
	case domain.RoleAdmin:
		return ViewAdmin
	case domain.RoleFaculty:
		return ViewFaculty
	default:
		return ViewStudent
	}
}

// Backend is what the dashboard reads and manages through.
type Backend interface {
	ListGrievances(ctx context.Context) ([]domain.Grievance, error)
	ListUsers(ctx context.Context) ([]domain.Identity, error)
	DeleteUser(ctx context.Context, id string) error
	ChangeRole(ctx context.Context, id string, role domain.Role) error
}

// Query narrows the rows shown. An empty or "All" status matches every
// status; Search matches description or submitter name ignoring case.
type Query struct {
	Search string
	Status string
}

// Stats counts the grievances visible to the viewer before any query.
type Stats struct {
	Total      int
	Pending    int
	InProgress int
	Resolved   int
	Escalated  int
}

// Row is one grievance with the actions offered on it.
type Row struct {
	Grievance domain.Grievance
	Actions   []domain.Status
}

// Snapshot is one rendered dashboard.
type Snapshot struct {
	View         View
	Viewer       domain.Identity
	Rows         []Row
	Stats        Stats
	CanSubmit    bool
	ManagesUsers bool
}

// Dashboard composes the session, the backend and the visibility rules.
type Dashboard struct {
	backend    Backend
	session    IdentitySource
	controller *Controller
	submitter  *Submitter
}

// NewDashboard wires a dashboard.
func NewDashboard(backend Backend, session IdentitySource, controller *Controller, submitter *Submitter) *Dashboard {
	return &Dashboard{
		backend:    backend,
		session:    session,
		controller: controller,
		submitter:  submitter,
	}
}

// Load fetches a fresh snapshot.
func (d *Dashboard) Load(ctx context.Context, q Query) (Snapshot, error) {
	viewer, ok := d.session.Identity()
	if !ok {
		return Snapshot{}, apperrors.NewUnauthorized("not signed in")
	}
	all, err := d.backend.ListGrievances(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	visible := policy.VisibleGrievances(viewer, all)

	filter, err := newRowFilter(q)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		View:         ViewFor(viewer.Role),
		Viewer:       viewer,
		Stats:        countStats(visible),
		CanSubmit:    policy.CanSubmit(viewer.Role),
		ManagesUsers: len(policy.ManageableRoles(viewer.Role)) > 0,
		Rows:         make([]Row, 0, len(visible)),
	}
	for _, g := range visible {
		if !filter.match(g) {
			continue
		}
		snap.Rows = append(snap.Rows, Row{Grievance: g, Actions: d.controller.Actions(g)})
	}
	return snap, nil
}

// Transition applies a status change and returns the re-fetched dashboard.
func (d *Dashboard) Transition(ctx context.Context, g domain.Grievance, next domain.Status, notes *string, q Query) (Snapshot, error) {
	if err := d.controller.Transition(ctx, &g, next, notes); err != nil {
		return Snapshot{}, err
	}
	return d.Load(ctx, q)
}

// Submit files a grievance and returns the re-fetched dashboard.
func (d *Dashboard) Submit(ctx context.Context, category, description string, attachment *Attachment, q Query) (Snapshot, error) {
	if _, err := d.submitter.Submit(ctx, category, description, attachment); err != nil {
		return Snapshot{}, err
	}
	return d.Load(ctx, q)
}

// Users lists the identities the viewer manages.
func (d *Dashboard) Users(ctx context.Context) ([]domain.Identity, error) {
	viewer, ok := d.session.Identity()
	if !ok {
		return nil, apperrors.NewUnauthorized("not signed in")
	}
	if len(policy.ManageableRoles(viewer.Role)) == 0 {
		return nil, apperrors.NewForbidden("user management is not available for your role")
	}
	all, err := d.backend.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return policy.ManagedIdentities(viewer, all), nil
}

// DeleteUser removes an identity and returns the re-fetched list.
func (d *Dashboard) DeleteUser(ctx context.Context, id string) ([]domain.Identity, error) {
	if err := d.backend.DeleteUser(ctx, id); err != nil {
		return nil, err
	}
	return d.Users(ctx)
}

// ChangeRole reassigns a role and returns the re-fetched list.
func (d *Dashboard) ChangeRole(ctx context.Context, id, rawRole string) ([]domain.Identity, error) {
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": "portal_role"})
	}
	if err := d.backend.ChangeRole(ctx, id, role); err != nil {
		return nil, err
	}
	return d.Users(ctx)
}

type rowFilter struct {
	search    string
	status    domain.Status
	anyStatus bool
}

func newRowFilter(q Query) (rowFilter, error) {
	f := rowFilter{search: strings.ToLower(strings.TrimSpace(q.Search))}
	raw := strings.TrimSpace(q.Status)
	if raw == "" || strings.EqualFold(raw, "all") {
		f.anyStatus = true
		return f, nil
	}
	status, ok := domain.ParseStatus(raw)
	if !ok {
		return rowFilter{}, apperrors.NewValidationError("invalid status filter", map[string]any{"status": "grievance_status"})
	}
	f.status = status
	return f, nil
}

func (f rowFilter) match(g domain.Grievance) bool {
	if !f.anyStatus && g.Status != f.status {
		return false
	}
	if f.search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(g.Description), f.search) ||
		strings.Contains(strings.ToLower(g.SubmitterName), f.search)
}

func countStats(list []domain.Grievance) Stats {
	stats := Stats{Total: len(list)}
	for _, g := range list {
		switch g.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusInProgress:
			stats.InProgress++
		case domain.StatusResolved:
			stats.Resolved++
		case domain.StatusEscalated:
			stats.Escalated++
		}
	}
	return stats
}
