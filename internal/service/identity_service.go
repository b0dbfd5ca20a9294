package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-portal/internal/auth"
	"github.com/spec-kit/grievance-portal/internal/config"
	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/events"
	"github.com/spec-kit/grievance-portal/internal/policy"
	"github.com/spec-kit/grievance-portal/internal/repository"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

// IdentityService applies the management hierarchy to accounts.
type IdentityService struct {
	identities repository.IdentityRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// IdentityDependencies bundles collaborators for the identity service.
type IdentityDependencies struct {
	IdentityRepo repository.IdentityRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewIdentityService builds the service.
func NewIdentityService(cfg config.Config, deps IdentityDependencies) *IdentityService {
	return &IdentityService{
		identities: deps.IdentityRepo,
		dispatcher: deps.Dispatcher,
		logger:     nopIfNil(deps.Logger),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// ListManaged returns the identities actor may manage.
func (s *IdentityService) ListManaged(ctx context.Context, actor domain.Identity) ([]domain.Identity, error) {
	roles := policy.ManageableRoles(actor.Role)
	if len(roles) == 0 {
		return []domain.Identity{}, nil
	}
	all, err := s.identities.List(ctx, roles)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return policy.ManagedIdentities(actor, all), nil
}

// Delete removes a managed identity. Grievances keep their submitter snapshot.
func (s *IdentityService) Delete(ctx context.Context, actor domain.Identity, id string) error {
	target, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "User")
	}
	if !policy.CanManage(actor, *target) {
		return apperrors.NewForbidden("you cannot delete this user")
	}
	if err := s.identities.Delete(ctx, id); err != nil {
		return mapRepoError(err, "User")
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventIdentityDeleted,
		SubjectID: target.ID,
		Actor:     events.Actor{ID: actor.ID, Role: actor.Role},
		Payload:   events.IdentityDeletedPayload{Role: target.Role},
	})
	return nil
}

// ChangeRole moves target id to rawRole.
func (s *IdentityService) ChangeRole(ctx context.Context, actor domain.Identity, id, rawRole string) (*domain.Identity, error) {
	next, ok := domain.ParseRole(rawRole)
	if !ok {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": rawRole})
	}
	target, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "User")
	}
	if err := policy.CheckRoleChange(actor, *target, next); err != nil {
		return nil, apperrors.NewForbidden("you cannot assign this role")
	}
	if target.Role == next {
		return target, nil
	}

	oldRole := target.Role
	if err := s.identities.UpdateRole(ctx, id, next); err != nil {
		return nil, mapRepoError(err, "User")
	}
	target.Role = next

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventIdentityRoleChanged,
		SubjectID: target.ID,
		Actor:     events.Actor{ID: actor.ID, Role: actor.Role},
		Payload:   events.IdentityRoleChangedPayload{OldRole: oldRole, NewRole: next},
	})
	return target, nil
}

// EnsureSuperAdmin creates the bootstrap super admin when configured and
// absent. An existing account with that email is left untouched.
func (s *IdentityService) EnsureSuperAdmin(ctx context.Context, cfg config.BootstrapConfig) error {
	email := strings.TrimSpace(cfg.SuperAdminEmail)
	if email == "" || cfg.SuperAdminPassword == "" {
		return nil
	}

	existing, err := s.identities.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != domain.RoleSuperAdmin {
			s.logger.Warn("bootstrap email belongs to a non super admin", zap.String("email", email), zap.String("role", string(existing.Role)))
		}
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(cfg.SuperAdminPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	identity := &domain.Identity{
		Name:         cfg.SuperAdminName,
		Email:        email,
		Role:         domain.RoleSuperAdmin,
		PasswordHash: hash,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return err
	}
	s.logger.Info("super admin bootstrapped", zap.String("email", email))
	return nil
}
