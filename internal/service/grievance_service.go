package service

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-portal/internal/clock"
	"github.com/spec-kit/grievance-portal/internal/config"
	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/events"
	"github.com/spec-kit/grievance-portal/internal/observability"
	"github.com/spec-kit/grievance-portal/internal/policy"
	"github.com/spec-kit/grievance-portal/internal/repository"
	"github.com/spec-kit/grievance-portal/internal/storage"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

// GrievanceService coordinates grievance workflows.
type GrievanceService struct {
	grievances repository.GrievanceRepository
	history    repository.GrievanceHistoryRepository
	storage    storage.Storage
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	lifecycle  policy.Lifecycle
	clock      clock.Clock
	logger     *zap.Logger
	maxUpload  int64
}

// GrievanceDependencies bundles collaborators for the grievance service.
type GrievanceDependencies struct {
	GrievanceRepo repository.GrievanceRepository
	HistoryRepo   repository.GrievanceHistoryRepository
	Storage       storage.Storage
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Clock         clock.Clock
	Logger        *zap.Logger
}

// AttachmentInput is an uploaded file.
type AttachmentInput struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// SubmitInput describes a new grievance.
type SubmitInput struct {
	Category    string
	Description string
	Attachment  *AttachmentInput
}

// ListFilter narrows a viewer's listing further.
type ListFilter struct {
	Statuses   []domain.Status
	SearchTerm string
}

// NewGrievanceService builds the service.
func NewGrievanceService(cfg config.Config, deps GrievanceDependencies) *GrievanceService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &GrievanceService{
		grievances: deps.GrievanceRepo,
		history:    deps.HistoryRepo,
		storage:    deps.Storage,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		lifecycle:  policy.NewLifecycle(cfg.Grievance.AllowReopen),
		clock:      clk,
		logger:     nopIfNil(deps.Logger),
		maxUpload:  cfg.Storage.MaxUploadBytes,
	}
}

// Submit records a new PENDING grievance for submitter.
func (s *GrievanceService) Submit(ctx context.Context, submitter domain.Identity, in SubmitInput) (*domain.Grievance, error) {
	if !policy.CanSubmit(submitter.Role) {
		return nil, apperrors.NewForbidden("only students and faculty can submit grievances")
	}
	category, ok := domain.ParseCategory(in.Category)
	if !ok {
		return nil, apperrors.NewValidationError("invalid category", map[string]any{"category": in.Category})
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description is required", nil)
	}

	grievance := &domain.Grievance{
		SubmitterID:   submitter.ID,
		SubmitterName: submitter.Name,
		Category:      category,
		Description:   description,
		Status:        domain.StatusPending,
	}

	if in.Attachment != nil {
		attachment, err := s.storeAttachment(ctx, submitter.ID, in.Attachment)
		if err != nil {
			return nil, err
		}
		grievance.Attachment = attachment
	}

	if err := s.grievances.Create(ctx, grievance); err != nil {
		if grievance.Attachment != nil {
			if delErr := s.storage.Delete(ctx, grievance.Attachment.Key); delErr != nil {
				s.logger.Warn("orphaned attachment", zap.String("key", grievance.Attachment.Key), zap.Error(delErr))
			}
		}
		return nil, apperrors.NewInternalError(err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventGrievanceSubmitted,
		SubjectID: strconv.FormatInt(grievance.ID, 10),
		Actor:     events.Actor{ID: submitter.ID, Role: submitter.Role},
		Payload: events.GrievanceSubmittedPayload{
			Category:      grievance.Category,
			SubmitterName: grievance.SubmitterName,
			HasAttachment: grievance.Attachment != nil,
		},
	})
	return grievance, nil
}

func (s *GrievanceService) storeAttachment(ctx context.Context, owner string, in *AttachmentInput) (*domain.Attachment, error) {
	if s.storage == nil {
		return nil, apperrors.NewInternalError(errors.New("attachment storage not configured"))
	}
	if s.maxUpload > 0 && in.Size > s.maxUpload {
		return nil, apperrors.NewValidationError("attachment too large", map[string]any{"maxBytes": s.maxUpload})
	}
	key, err := s.storage.Store(ctx, owner, in.FileName, in.Content, in.Size, in.ContentType)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &domain.Attachment{
		Key:         key,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		SizeBytes:   in.Size,
	}, nil
}

// ListForViewer returns the grievances viewer may see, oldest first.
func (s *GrievanceService) ListForViewer(ctx context.Context, viewer domain.Identity, filter ListFilter) ([]domain.Grievance, error) {
	repoFilter := repository.GrievanceFilter{Statuses: filter.Statuses}
	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		repoFilter.SearchTerm = &term
	}

	switch viewer.Role {
	case domain.RoleAdmin:
	case domain.RoleFaculty:
		for _, category := range domain.Categories {
			if policy.FacultyManages(category) {
				repoFilter.Categories = append(repoFilter.Categories, category)
			}
		}
	default:
		if viewer.ID == "" {
			return []domain.Grievance{}, nil
		}
		id := viewer.ID
		repoFilter.SubmitterID = &id
	}

	all, err := s.grievances.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return policy.VisibleGrievances(viewer, all), nil
}

// Transition moves grievance id to the status named by rawStatus.
func (s *GrievanceService) Transition(ctx context.Context, actor domain.Identity, id int64, rawStatus string, notes *string) (*domain.Grievance, error) {
	next, ok := domain.ParseStatus(rawStatus)
	if !ok {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": rawStatus})
	}

	grievance, err := s.grievances.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "Grievance")
	}

	result, err := s.lifecycle.Apply(actor, *grievance, next, notes, s.clock.Now())
	switch {
	case errors.Is(err, policy.ErrUnauthorized):
		return nil, apperrors.NewUnauthorizedTransition("you are not allowed to update this grievance", err)
	case errors.Is(err, policy.ErrInvalidTransition):
		return nil, apperrors.NewValidationError("status transition not allowed", map[string]any{
			"from": grievance.Status,
			"to":   next,
		})
	case err != nil:
		return nil, apperrors.NewInternalError(err)
	}

	oldStatus := grievance.Status
	grievance.Status = result.Status
	grievance.ResolutionNotes = result.ResolutionNotes
	grievance.UpdatedAt = result.UpdatedAt
	entry := &domain.GrievanceHistory{
		GrievanceID: grievance.ID,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		OldStatus:   oldStatus,
		NewStatus:   grievance.Status,
		Notes:       suppliedNotes(notes),
	}
	if err := s.grievances.UpdateWithHistory(ctx, grievance, entry); err != nil {
		return nil, mapRepoError(err, "Grievance")
	}

	s.metrics.RecordTransition(string(oldStatus), string(grievance.Status))
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventGrievanceStatusChanged,
		SubjectID: strconv.FormatInt(grievance.ID, 10),
		Actor:     events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.GrievanceStatusChangedPayload{
			SubmitterID: grievance.SubmitterID,
			OldStatus:   oldStatus,
			NewStatus:   grievance.Status,
			Notes:       grievance.ResolutionNotes,
		},
	})
	return grievance, nil
}

// History lists the status changes of a grievance visible to viewer.
func (s *GrievanceService) History(ctx context.Context, viewer domain.Identity, id int64) ([]domain.GrievanceHistory, error) {
	if _, err := s.visible(ctx, viewer, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.GrievanceHistory{}, nil
	}
	entries, err := s.history.ListByGrievance(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

// OpenAttachment streams the attachment of a grievance visible to viewer.
// The caller closes the reader.
func (s *GrievanceService) OpenAttachment(ctx context.Context, viewer domain.Identity, id int64) (io.ReadCloser, domain.Attachment, error) {
	grievance, err := s.visible(ctx, viewer, id)
	if err != nil {
		return nil, domain.Attachment{}, err
	}
	if grievance.Attachment == nil || s.storage == nil {
		return nil, domain.Attachment{}, apperrors.NewNotFound("Attachment", nil)
	}
	reader, err := s.storage.Retrieve(ctx, grievance.Attachment.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.Attachment{}, apperrors.NewNotFound("Attachment", nil)
		}
		return nil, domain.Attachment{}, apperrors.NewInternalError(err)
	}
	return reader, *grievance.Attachment, nil
}

// visible loads id and hides grievances viewer may not see behind NOT_FOUND.
func (s *GrievanceService) visible(ctx context.Context, viewer domain.Identity, id int64) (*domain.Grievance, error) {
	grievance, err := s.grievances.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "Grievance")
	}
	if !policy.CanView(viewer, *grievance) {
		return nil, apperrors.NewNotFound("Grievance", nil)
	}
	return grievance, nil
}

func suppliedNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
