package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/policy"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

func seedGrievances() []domain.Grievance {
	mk := func(id int64, submitter domain.Identity, category domain.Category, status domain.Status, description string) domain.Grievance {
		return domain.Grievance{
			ID:            id,
			SubmitterID:   submitter.ID,
			SubmitterName: submitter.Name,
			Category:      category,
			Description:   description,
			Status:        status,
			CreatedAt:     baseTime,
			UpdatedAt:     baseTime,
		}
	}
	return []domain.Grievance{
		mk(1, student, domain.CategoryAcademic, domain.StatusPending, "Exam grade missing"),
		mk(2, student, domain.CategoryFacility, domain.StatusInProgress, "Broken projector in hall B"),
		mk(3, faculty, domain.CategoryFaculty, domain.StatusResolved, "Lab schedule clash"),
		mk(4, faculty, domain.CategoryHarassment, domain.StatusEscalated, "Reported incident"),
		mk(5, student, domain.CategoryOther, domain.StatusPending, "Library hours"),
	}
}

type dashboardFixture struct {
	backend   *fakeBackend
	store     *SessionStore
	dashboard *Dashboard
}

func newDashboardFixture(t *testing.T, email string) dashboardFixture {
	t.Helper()
	backend, srv := newFakeBackend(t, seedGrievances()...)
	api, store, _ := newTestSession(t, srv)
	_, err := store.SignIn(context.Background(), email, "secret1", "")
	require.NoError(t, err)

	controller := NewController(api, store, policy.NewLifecycle(true))
	return dashboardFixture{
		backend:   backend,
		store:     store,
		dashboard: NewDashboard(api, store, controller, NewSubmitter(api, store)),
	}
}

func rowIDs(rows []Row) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Grievance.ID)
	}
	return ids
}

func TestDashboardViews(t *testing.T) {
	tests := []struct {
		email        string
		view         View
		ids          []int64
		stats        Stats
		canSubmit    bool
		managesUsers bool
	}{
		{"asha@uni.edu", ViewStudent, []int64{1, 2, 5}, Stats{Total: 3, Pending: 2, InProgress: 1}, true, false},
		{"rao@uni.edu", ViewFaculty, []int64{1, 3, 5}, Stats{Total: 3, Pending: 2, Resolved: 1}, true, false},
		{"admin@uni.edu", ViewAdmin, []int64{1, 2, 3, 4, 5}, Stats{Total: 5, Pending: 2, InProgress: 1, Resolved: 1, Escalated: 1}, false, true},
		{"root@uni.edu", ViewStudent, []int64{}, Stats{}, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.view)+"/"+tt.email, func(t *testing.T) {
			f := newDashboardFixture(t, tt.email)

			snap, err := f.dashboard.Load(context.Background(), Query{})
			require.NoError(t, err)
			assert.Equal(t, tt.view, snap.View)
			assert.Equal(t, tt.ids, rowIDs(snap.Rows))
			assert.Equal(t, tt.stats, snap.Stats)
			assert.Equal(t, tt.canSubmit, snap.CanSubmit)
			assert.Equal(t, tt.managesUsers, snap.ManagesUsers)
		})
	}
}

func TestDashboardQuery(t *testing.T) {
	f := newDashboardFixture(t, "admin@uni.edu")
	ctx := context.Background()

	tests := []struct {
		name  string
		query Query
		ids   []int64
	}{
		{"all", Query{Status: "All"}, []int64{1, 2, 3, 4, 5}},
		{"status", Query{Status: "pending"}, []int64{1, 5}},
		{"search description", Query{Search: "PROJECTOR"}, []int64{2}},
		{"search submitter", Query{Search: "dr. rao"}, []int64{3, 4}},
		{"search and status", Query{Search: "rao", Status: "Escalated"}, []int64{4}},
		{"no match", Query{Search: "cafeteria"}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := f.dashboard.Load(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.ids, rowIDs(snap.Rows))
			assert.Equal(t, 5, snap.Stats.Total)
		})
	}

	_, err := f.dashboard.Load(ctx, Query{Status: "closed"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestDashboardRowActions(t *testing.T) {
	f := newDashboardFixture(t, "rao@uni.edu")

	snap, err := f.dashboard.Load(context.Background(), Query{})
	require.NoError(t, err)

	actions := map[int64][]domain.Status{}
	for _, row := range snap.Rows {
		actions[row.Grievance.ID] = row.Actions
	}
	assert.Equal(t, []domain.Status{domain.StatusInProgress, domain.StatusResolved}, actions[1])
	assert.Equal(t, []domain.Status{domain.StatusInProgress}, actions[3])
}

func TestDashboardTransitionRefetches(t *testing.T) {
	f := newDashboardFixture(t, "admin@uni.edu")
	ctx := context.Background()

	snap, err := f.dashboard.Load(ctx, Query{})
	require.NoError(t, err)
	callsBefore := f.backend.listCount()

	target := snap.Rows[1].Grievance
	next, err := f.dashboard.Transition(ctx, target, domain.StatusResolved, strPtr("Fixed"), Query{})
	require.NoError(t, err)

	assert.Equal(t, callsBefore+1, f.backend.listCount())
	assert.Equal(t, domain.StatusInProgress, target.Status)
	updated := next.Rows[1].Grievance
	assert.Equal(t, domain.StatusResolved, updated.Status)
	require.NotNil(t, updated.ResolutionNotes)
	assert.Equal(t, "Fixed", *updated.ResolutionNotes)
}

func TestDashboardTransitionFailureSkipsRefetch(t *testing.T) {
	f := newDashboardFixture(t, "admin@uni.edu")
	ctx := context.Background()
	f.backend.setFailUpdate(true)

	snap, err := f.dashboard.Load(ctx, Query{})
	require.NoError(t, err)
	callsBefore := f.backend.listCount()

	_, err = f.dashboard.Transition(ctx, snap.Rows[0].Grievance, domain.StatusEscalated, nil, Query{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTransitionFailed))
	assert.Equal(t, callsBefore, f.backend.listCount())
}

func TestDashboardSubmitThenList(t *testing.T) {
	f := newDashboardFixture(t, "asha@uni.edu")
	ctx := context.Background()

	before, err := f.dashboard.Load(ctx, Query{})
	require.NoError(t, err)

	after, err := f.dashboard.Submit(ctx, "Academic", "  Transcript delayed  ", nil, Query{})
	require.NoError(t, err)

	require.Len(t, after.Rows, len(before.Rows)+1)
	created := after.Rows[len(after.Rows)-1].Grievance
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.Equal(t, domain.CategoryAcademic, created.Category)
	assert.Equal(t, "Transcript delayed", created.Description)
	assert.Equal(t, student.ID, created.SubmitterID)
}

func TestSubmitterValidation(t *testing.T) {
	f := newDashboardFixture(t, "asha@uni.edu")
	ctx := context.Background()

	_, err := f.dashboard.Submit(ctx, "Sports", "", nil, Query{})
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, domainErr.Code)
	assert.Contains(t, domainErr.Details, "category")
	assert.Contains(t, domainErr.Details, "description")

	adminFixture := newDashboardFixture(t, "admin@uni.edu")
	_, err = adminFixture.dashboard.Submit(ctx, "Academic", "text", nil, Query{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestDashboardUserManagement(t *testing.T) {
	f := newDashboardFixture(t, "root@uni.edu")
	ctx := context.Background()

	users, err := f.dashboard.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, admin.ID, users[0].ID)

	users, err = f.dashboard.DeleteUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.Empty(t, users)

	studentFixture := newDashboardFixture(t, "asha@uni.edu")
	_, err = studentFixture.dashboard.Users(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestDashboardChangeRole(t *testing.T) {
	f := newDashboardFixture(t, "admin@uni.edu")
	ctx := context.Background()

	users, err := f.dashboard.ChangeRole(ctx, student.ID, "faculty")
	require.NoError(t, err)
	for _, u := range users {
		if u.ID == student.ID {
			assert.Equal(t, domain.RoleFaculty, u.Role)
		}
	}

	_, err = f.dashboard.ChangeRole(ctx, student.ID, "janitor")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
