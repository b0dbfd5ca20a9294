package client

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/grievance-portal/internal/clock"
	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/policy"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

// GrievanceUpdater sends a status change to the backend.
type GrievanceUpdater interface {
	UpdateGrievance(ctx context.Context, id int64, status domain.Status, notes *string) (domain.Grievance, error)
}

// IdentitySource yields the signed in identity.
type IdentitySource interface {
	Identity() (domain.Identity, bool)
}

// Controller applies status transitions on behalf of the signed in user.
type Controller struct {
	updater   GrievanceUpdater
	session   IdentitySource
	lifecycle policy.Lifecycle
	clk       clock.Clock
}

// NewController wires the update call path.
func NewController(updater GrievanceUpdater, session IdentitySource, lifecycle policy.Lifecycle) *Controller {
	return &Controller{
		updater:   updater,
		session:   session,
		lifecycle: lifecycle,
		clk:       clock.Real(),
	}
}

// Transition checks the change locally and PUTs it. g is never modified;
// callers re-fetch to see the stored result.
func (c *Controller) Transition(ctx context.Context, g *domain.Grievance, next domain.Status, notes *string) error {
	actor, ok := c.session.Identity()
	if !ok {
		return apperrors.NewUnauthorized("not signed in")
	}
	if _, err := c.lifecycle.Apply(actor, *g, next, notes, c.clk.Now()); err != nil {
		switch {
		case errors.Is(err, policy.ErrUnauthorized):
			return apperrors.NewUnauthorizedTransition("you cannot change this grievance", err)
		case errors.Is(err, policy.ErrInvalidTransition):
			return apperrors.NewValidationError(err.Error(), map[string]any{
				"from": g.Status,
				"to":   next,
			})
		default:
			return apperrors.NewInternalError(err)
		}
	}

	var sent *string
	if notes != nil && strings.TrimSpace(*notes) != "" {
		trimmed := strings.TrimSpace(*notes)
		sent = &trimmed
	}
	if _, err := c.updater.UpdateGrievance(ctx, g.ID, next, sent); err != nil {
		return apperrors.NewTransitionFailed(err)
	}
	return nil
}

// Actions lists the statuses the signed in user may move g to.
func (c *Controller) Actions(g domain.Grievance) []domain.Status {
	actor, ok := c.session.Identity()
	if !ok {
		return nil
	}
	return c.lifecycle.Actions(actor, g)
}
