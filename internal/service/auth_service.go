package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-portal/internal/auth"
	"github.com/spec-kit/grievance-portal/internal/clock"
	"github.com/spec-kit/grievance-portal/internal/config"
	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/events"
	"github.com/spec-kit/grievance-portal/internal/mailer"
	"github.com/spec-kit/grievance-portal/internal/policy"
	"github.com/spec-kit/grievance-portal/internal/repository"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

const msgInvalidOTP = "Invalid or expired OTP"

// AuthService coordinates registration, login and password reset flows.
type AuthService struct {
	identities repository.IdentityRepository
	resets     repository.PasswordResetRepository
	tokenMgr   *auth.TokenManager
	limiter    Limiter
	mailer     mailer.Sender
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	bcryptCost int
	resetTTL   time.Duration
	loginQuota Quota
	resetQuota Quota
}

// AuthDependencies encapsulates collaborators for the auth service. A nil
// Mailer makes every password reset request fail.
type AuthDependencies struct {
	IdentityRepo      repository.IdentityRepository
	PasswordResetRepo repository.PasswordResetRepository
	Limiter           Limiter
	Mailer            mailer.Sender
	Dispatcher        events.Dispatcher
	Clock             clock.Clock
	Logger            *zap.Logger
}

// RegisterInput is the self sign-up payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Session is a successful sign-in.
type Session struct {
	Identity  domain.Identity
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &AuthService{
		identities: deps.IdentityRepo,
		resets:     deps.PasswordResetRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		limiter:    deps.Limiter,
		mailer:     deps.Mailer,
		dispatcher: deps.Dispatcher,
		clock:      clk,
		logger:     nopIfNil(deps.Logger),
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		loginQuota: Quota{Limit: cfg.Auth.LoginAttempts, Window: time.Duration(cfg.Auth.LoginWindowMinutes) * time.Minute},
		resetQuota: Quota{Limit: cfg.Auth.ResetRequests, Window: time.Duration(cfg.Auth.ResetWindowMinutes) * time.Minute},
	}
}

// Register creates a student or faculty account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, apperrors.NewValidationError("name, email and password are required", nil)
	}
	if err := auth.CheckPassword(in.Password); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}

	role := domain.RoleStudent
	if strings.TrimSpace(in.Role) != "" {
		parsed, ok := domain.ParseRole(in.Role)
		if !ok {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": in.Role})
		}
		role = parsed
	}
	if !policy.SelfRegistrable(role) {
		return nil, apperrors.NewForbidden(fmt.Sprintf("%s accounts cannot be self-registered", role))
	}

	if _, err := s.identities.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("Email already exists", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	identity := &domain.Identity{
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("Email already exists", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return s.issue(*identity)
}

// Login authenticates by email and password. A non-blank role must match
// the registered one.
func (s *AuthService) Login(ctx context.Context, email, password, role string) (*Session, error) {
	email = strings.TrimSpace(email)
	throttleKey := "login:" + strings.ToLower(email)
	if err := s.throttle(ctx, throttleKey, s.loginQuota); err != nil {
		return nil, err
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(identity.PasswordHash, password); err != nil {
		return nil, apperrors.NewInvalidCredentials()
	}
	s.upgradeHash(ctx, identity, password)

	if strings.TrimSpace(role) != "" {
		requested, ok := domain.ParseRole(role)
		if !ok || requested != identity.Role {
			return nil, apperrors.NewForbidden(fmt.Sprintf("Role mismatch: you are registered as %s", identity.Role))
		}
	}

	s.clearThrottle(ctx, throttleKey)
	return s.issue(*identity)
}

// RequestPasswordReset issues a one-time code for email and mails it. It
// only succeeds once the mail relay has accepted the message.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := s.throttle(ctx, "reset:"+strings.ToLower(email), s.resetQuota); err != nil {
		return err
	}
	if s.mailer == nil {
		return apperrors.NewDeliveryFailed("password reset delivery is not configured", mailer.ErrNotConfigured)
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		return mapRepoError(err, "User")
	}

	otp, err := generateOTP()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	code := &repository.PasswordResetCode{
		IdentityID: identity.ID,
		Code:       otp,
		ExpiresAt:  s.clock.Now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, code); err != nil {
		return apperrors.NewInternalError(err)
	}

	if err := s.mailer.Send(ctx, resetCodeMessage(*identity, otp, s.resetTTL)); err != nil {
		s.logger.Warn("reset code delivery failed", zap.String("identity_id", identity.ID), zap.Error(err))
		return apperrors.NewDeliveryFailed("could not deliver reset code, try again later", err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventPasswordResetRequested,
		SubjectID: identity.ID,
		Actor:     events.Actor{ID: identity.ID, Role: identity.Role},
		Payload: events.PasswordResetRequestedPayload{
			Email:     identity.Email,
			Name:      identity.Name,
			ExpiresAt: code.ExpiresAt,
		},
	})
	return nil
}

func resetCodeMessage(identity domain.Identity, otp string, ttl time.Duration) mailer.Message {
	to := identity.Email
	if identity.Name != "" {
		to = (&mail.Address{Name: identity.Name, Address: identity.Email}).String()
	}
	return mailer.Message{
		To:      to,
		Subject: "Your grievance portal password reset code",
		Body: fmt.Sprintf("Hello %s,\n\nYour password reset code is %s. It expires in %d minutes.\n\n"+
			"If you did not ask to reset your password you can ignore this message.\n",
			identity.Name, otp, int(ttl/time.Minute)),
	}
}

// ResetPassword consumes a code and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apperrors.NewValidationError("new password is required", nil)
	}
	if err := auth.CheckPassword(newPassword); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	identity, err := s.identities.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError(msgInvalidOTP, nil)
		}
		return apperrors.NewInternalError(err)
	}

	code, err := s.resets.GetLatest(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError(msgInvalidOTP, nil)
		}
		return apperrors.NewInternalError(err)
	}
	if code.UsedAt != nil || !s.clock.Now().Before(code.ExpiresAt) ||
		subtle.ConstantTimeCompare([]byte(code.Code), []byte(strings.TrimSpace(otp))) != 1 {
		return apperrors.NewValidationError(msgInvalidOTP, nil)
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.identities.UpdatePassword(ctx, identity.ID, hash); err != nil {
		return mapRepoError(err, "User")
	}
	if err := s.resets.MarkUsed(ctx, code.ID); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// upgradeHash re-hashes a verified password stored under an outdated cost.
// Failure leaves the old hash in place.
func (s *AuthService) upgradeHash(ctx context.Context, identity *domain.Identity, password string) {
	if !auth.NeedsRehash(identity.PasswordHash, s.bcryptCost) {
		return
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		s.logger.Warn("password rehash failed", zap.String("identity_id", identity.ID), zap.Error(err))
		return
	}
	if err := s.identities.UpdatePassword(ctx, identity.ID, hash); err != nil {
		s.logger.Warn("password rehash not stored", zap.String("identity_id", identity.ID), zap.Error(err))
		return
	}
	identity.PasswordHash = hash
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(identity domain.Identity) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(identity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Identity: identity, Token: token, ExpiresAt: exp}, nil
}

// throttle fails open when the limiter is unavailable.
func (s *AuthService) throttle(ctx context.Context, key string, quota Quota) error {
	if s.limiter == nil || !quota.enabled() {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, key, quota.Limit, quota.Window)
	if err != nil {
		s.logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !allowed {
		return apperrors.NewTooManyRequests("too many attempts, try again later")
	}
	return nil
}

func (s *AuthService) clearThrottle(ctx context.Context, key string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logger.Warn("rate limiter reset failed", zap.String("key", key), zap.Error(err))
	}
}

// generateOTP returns a uniformly random six digit code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
