package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-portal/internal/api/dto"
	"github.com/spec-kit/grievance-portal/internal/service"
	"github.com/spec-kit/grievance-portal/internal/validator"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

// AuthService is what the auth endpoints need.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.Session, error)
	Login(ctx context.Context, email, password, role string) (*service.Session, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
}

// AuthHandler serves sign-in, sign-up and password reset.
type AuthHandler struct {
	service  AuthService
	validate *validator.Validator
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService AuthService, validate *validator.Validator) *AuthHandler {
	return &AuthHandler{service: authService, validate: validate}
}

// Register POST /register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}
	session, err := h.service.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": authResponse(session)})
}

// Login POST /login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewInvalidCredentials()
	}
	session, err := h.service.Login(c.UserContext(), req.Email, req.Password, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authResponse(session)})
}

// ForgotPassword POST /forgot-password.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}
	if err := h.service.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": dto.MessageResponse{Message: "OTP sent to your email"}})
}

// ResetPassword POST /reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}
	if err := h.service.ResetPassword(c.UserContext(), req.Email, req.OTP, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MessageResponse{Message: "Password reset successful"}})
}

func authResponse(session *service.Session) dto.AuthResponse {
	return dto.AuthResponse{
		User:      dto.NewIdentityResponse(session.Identity),
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}
}
