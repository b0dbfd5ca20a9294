package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/grievance-portal/internal/domain"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

// Validator validates request DTOs.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("grievance_category", validateCategory)
	v.RegisterValidation("grievance_status", validateStatus)
	v.RegisterValidation("portal_role", validateRole)
	v.RegisterValidation("notblank", validateNotBlank)

	return &Validator{validate: v}
}

// Validate checks i and converts failures into a VALIDATION_FAILED error
// listing the offending fields.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid request", nil)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[lowerFirst(fe.Field())] = fe.Tag()
	}
	return apperrors.NewValidationError("invalid request", details)
}

func validateCategory(fl validator.FieldLevel) bool {
	_, ok := domain.ParseCategory(fl.Field().String())
	return ok
}

func validateStatus(fl validator.FieldLevel) bool {
	_, ok := domain.ParseStatus(fl.Field().String())
	return ok
}

// validateRole accepts an empty value so optional role fields can default.
func validateRole(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if strings.TrimSpace(raw) == "" {
		return true
	}
	_, ok := domain.ParseRole(raw)
	return ok
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
