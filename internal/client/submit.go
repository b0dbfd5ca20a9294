package client

import (
	"context"
	"strings"

	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/policy"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

// GrievanceCreator posts a new grievance.
type GrievanceCreator interface {
	CreateGrievance(ctx context.Context, submitter domain.Identity, category domain.Category, description string, attachment *Attachment) (domain.Grievance, error)
}

// Submitter files grievances as the signed in user.
type Submitter struct {
	creator GrievanceCreator
	session IdentitySource
}

// NewSubmitter wires the submission path.
func NewSubmitter(creator GrievanceCreator, session IdentitySource) *Submitter {
	return &Submitter{creator: creator, session: session}
}

// Submit validates locally and creates the grievance. The returned value
// is the server's copy; callers re-fetch their list afterwards.
func (s *Submitter) Submit(ctx context.Context, category, description string, attachment *Attachment) (domain.Grievance, error) {
	submitter, ok := s.session.Identity()
	if !ok {
		return domain.Grievance{}, apperrors.NewUnauthorized("not signed in")
	}
	if !policy.CanSubmit(submitter.Role) {
		return domain.Grievance{}, apperrors.NewForbidden("only students and faculty can submit grievances")
	}

	details := map[string]any{}
	parsed, ok := domain.ParseCategory(category)
	if !ok {
		details["category"] = "grievance_category"
	}
	description = strings.TrimSpace(description)
	if description == "" {
		details["description"] = "required"
	}
	if len(details) > 0 {
		return domain.Grievance{}, apperrors.NewValidationError("invalid grievance", details)
	}

	return s.creator.CreateGrievance(ctx, submitter, parsed, description, attachment)
}
