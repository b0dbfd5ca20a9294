package dto

import (
	"fmt"
	"time"

	"github.com/spec-kit/grievance-portal/internal/domain"
)

// RegisterRequest payload for self sign-up.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"portal_role"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"portal_role"`
}

// ForgotPasswordRequest asks for a reset code.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest consumes a reset code.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// ChangeRoleRequest is the PUT /users/:id/role payload.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,portal_role"`
}

// IdentityResponse is the public form of an identity.
type IdentityResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	AvatarRef *string   `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewIdentityResponse converts an identity. The password hash never leaves
// the server.
func NewIdentityResponse(identity domain.Identity) IdentityResponse {
	return IdentityResponse{
		ID:        identity.ID,
		Name:      identity.Name,
		Email:     identity.Email,
		Role:      string(identity.Role),
		AvatarRef: identity.AvatarRef,
		CreatedAt: identity.CreatedAt,
	}
}

// NewIdentityResponses converts a list, never returning nil.
func NewIdentityResponses(list []domain.Identity) []IdentityResponse {
	out := make([]IdentityResponse, 0, len(list))
	for _, identity := range list {
		out = append(out, NewIdentityResponse(identity))
	}
	return out
}

// ToDomain normalizes the role and rebuilds the identity.
func (r IdentityResponse) ToDomain() (domain.Identity, error) {
	role, ok := domain.ParseRole(r.Role)
	if !ok {
		return domain.Identity{}, fmt.Errorf("identity %s: unknown role %q", r.ID, r.Role)
	}
	return domain.Identity{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      role,
		AvatarRef: r.AvatarRef,
		CreatedAt: r.CreatedAt,
	}, nil
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	User      IdentityResponse `json:"user"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// MessageResponse carries a human readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorBody is the error envelope rendered by the API.
type ErrorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
	Message string `json:"message,omitempty"`
}
