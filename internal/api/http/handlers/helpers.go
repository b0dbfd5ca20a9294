package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-portal/internal/auth"
	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/validator"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

func parseBody(c *fiber.Ctx, validate *validator.Validator, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if validate == nil {
		return nil
	}
	return validate.Validate(out)
}

func principal(c *fiber.Ctx) (domain.Identity, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok || p == nil {
		return domain.Identity{}, apperrors.NewUnauthorized("authentication required")
	}
	return p.Identity, nil
}

func grievanceID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid grievance id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}
