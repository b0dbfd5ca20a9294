package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-portal/internal/api/dto"
	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/validator"
)

// IdentityService is what the user management endpoints need.
type IdentityService interface {
	ListManaged(ctx context.Context, actor domain.Identity) ([]domain.Identity, error)
	Delete(ctx context.Context, actor domain.Identity, id string) error
	ChangeRole(ctx context.Context, actor domain.Identity, id, rawRole string) (*domain.Identity, error)
}

// IdentityHandler serves user management.
type IdentityHandler struct {
	service  IdentityService
	validate *validator.Validator
}

// NewIdentityHandler constructs handler.
func NewIdentityHandler(identityService IdentityService, validate *validator.Validator) *IdentityHandler {
	return &IdentityHandler{service: identityService, validate: validate}
}

// List GET /users.
func (h *IdentityHandler) List(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	identities, err := h.service.ListManaged(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIdentityResponses(identities)})
}

// Delete DELETE /users/:id.
func (h *IdentityHandler) Delete(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MessageResponse{Message: "User deleted successfully"}})
}

// ChangeRole PUT /users/:id/role.
func (h *IdentityHandler) ChangeRole(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ChangeRoleRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}
	updated, err := h.service.ChangeRole(c.UserContext(), actor, c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"message": "Role updated successfully",
		"user":    dto.NewIdentityResponse(*updated),
	}})
}
