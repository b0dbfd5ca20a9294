package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the API and the portal client.
const (
	CodeValidation             = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeForbidden              = "FORBIDDEN"
	CodeUnauthorizedTransition = "UNAUTHORIZED_TRANSITION"
	CodeConflict               = "CONFLICT"
	CodeTooManyRequests        = "TOO_MANY_REQUESTS"
	CodeTransitionFailed       = "TRANSITION_FAILED"
	CodeBackendUnreachable     = "BACKEND_UNREACHABLE"
	CodeDeliveryFailed         = "DELIVERY_FAILED"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewUnauthorizedTransition reports an actor acting on a grievance outside its authority.
func NewUnauthorizedTransition(message string, err error) error {
	return &DomainError{
		Code:       CodeUnauthorizedTransition,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
		Err:        err,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewTooManyRequests(message string) error {
	return NewDomainError(CodeTooManyRequests, message, http.StatusTooManyRequests, nil)
}

// NewTransitionFailed wraps a failed status write.
func NewTransitionFailed(err error) error {
	details := map[string]any{}
	var cause *DomainError
	if errors.As(err, &cause) {
		details["cause"] = cause.Code
	}
	return &DomainError{
		Code:       CodeTransitionFailed,
		Message:    "failed to update grievance status",
		HTTPStatus: http.StatusBadGateway,
		Details:    details,
		Err:        err,
	}
}

// NewBackendUnreachable wraps a transport failure talking to the API.
func NewBackendUnreachable(err error) error {
	return &DomainError{
		Code:       CodeBackendUnreachable,
		Message:    "grievance service unreachable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewDeliveryFailed reports a message that could not be handed to its
// delivery channel.
func NewDeliveryFailed(message string, err error) error {
	return &DomainError{
		Code:       CodeDeliveryFailed,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether the outermost DomainError in err carries code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
