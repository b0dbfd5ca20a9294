package policy

import (
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/grievance-portal/internal/domain"
)

var (
	// ErrUnauthorized means the actor may not change this grievance.
	ErrUnauthorized = errors.New("actor may not change this grievance")
	// ErrInvalidTransition means the target status is not reachable.
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// TransitionTable maps a current status to the statuses it may move to.
type TransitionTable map[domain.Status][]domain.Status

var resolverTargets = []domain.Status{
	domain.StatusInProgress,
	domain.StatusResolved,
	domain.StatusEscalated,
}

// LooseTransitions lets any status move to any resolver target, reopening
// resolved grievances included. PENDING is never a target.
var LooseTransitions = TransitionTable{
	domain.StatusPending:    resolverTargets,
	domain.StatusInProgress: resolverTargets,
	domain.StatusResolved:   resolverTargets,
	domain.StatusEscalated:  resolverTargets,
}

// NoReopenTransitions treats RESOLVED as terminal. Re-resolving is kept so
// notes can still be amended.
var NoReopenTransitions = TransitionTable{
	domain.StatusPending:    resolverTargets,
	domain.StatusInProgress: resolverTargets,
	domain.StatusResolved:   {domain.StatusResolved},
	domain.StatusEscalated:  resolverTargets,
}

// Allows reports whether current may move to next.
func (t TransitionTable) Allows(current, next domain.Status) bool {
	for _, candidate := range t[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Transition is the outcome of a permitted status change.
type Transition struct {
	Status          domain.Status
	ResolutionNotes *string
	UpdatedAt       time.Time
}

// Lifecycle validates and computes grievance status changes. The zero
// value uses LooseTransitions.
type Lifecycle struct {
	table TransitionTable
}

func (l Lifecycle) transitions() TransitionTable {
	if l.table == nil {
		return LooseTransitions
	}
	return l.table
}

// NewLifecycle picks the transition table. allowReopen selects
// LooseTransitions.
func NewLifecycle(allowReopen bool) Lifecycle {
	if allowReopen {
		return Lifecycle{table: LooseTransitions}
	}
	return Lifecycle{table: NoReopenTransitions}
}

// CanResolve reports whether actor may change g at all: admins on every
// category, faculty on the categories they manage.
func CanResolve(actor domain.Identity, g domain.Grievance) bool {
	switch roleOf(actor) {
	case domain.RoleAdmin:
		return true
	case domain.RoleFaculty:
		return FacultyManages(g.Category)
	default:
		return false
	}
}

// Apply computes the result of actor moving g to next. g is not modified.
// Blank notes leave the existing resolution notes in place.
func (l Lifecycle) Apply(actor domain.Identity, g domain.Grievance, next domain.Status, notes *string, now time.Time) (Transition, error) {
	if !CanResolve(actor, g) {
		return Transition{}, ErrUnauthorized
	}
	next = statusOf(next)
	if !l.transitions().Allows(statusOf(g.Status), next) {
		return Transition{}, ErrInvalidTransition
	}

	result := Transition{Status: next, UpdatedAt: now}
	if g.UpdatedAt.After(now) {
		result.UpdatedAt = g.UpdatedAt
	}

	switch {
	case notes != nil && strings.TrimSpace(*notes) != "":
		trimmed := strings.TrimSpace(*notes)
		result.ResolutionNotes = &trimmed
	case g.ResolutionNotes != nil:
		existing := *g.ResolutionNotes
		result.ResolutionNotes = &existing
	}
	return result, nil
}

// Actions lists the statuses actor is offered for g. Faculty work tickets
// forward, admins close or escalate them.
func (l Lifecycle) Actions(actor domain.Identity, g domain.Grievance) []domain.Status {
	if !CanResolve(actor, g) {
		return nil
	}
	var offered []domain.Status
	switch roleOf(actor) {
	case domain.RoleFaculty:
		offered = []domain.Status{domain.StatusInProgress, domain.StatusResolved}
	case domain.RoleAdmin:
		offered = []domain.Status{domain.StatusResolved, domain.StatusEscalated}
	}
	current := statusOf(g.Status)
	actions := make([]domain.Status, 0, len(offered))
	for _, status := range offered {
		if status != current && l.transitions().Allows(current, status) {
			actions = append(actions, status)
		}
	}
	return actions
}

// statusOf folds wire spellings such as "in progress" onto the canonical
// status. Unknown values are returned unchanged and match no table entry.
func statusOf(s domain.Status) domain.Status {
	if parsed, ok := domain.ParseStatus(string(s)); ok {
		return parsed
	}
	return s
}

func roleOf(actor domain.Identity) domain.Role {
	if parsed, ok := domain.ParseRole(string(actor.Role)); ok {
		return parsed
	}
	return actor.Role
}
