package events

import (
	"time"

	"github.com/spec-kit/grievance-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventGrievanceSubmitted     EventType = "grievance.submitted"
	EventGrievanceStatusChanged EventType = "grievance.status_changed"
	EventIdentityDeleted        EventType = "identity.deleted"
	EventIdentityRoleChanged    EventType = "identity.role_changed"
	EventPasswordResetRequested EventType = "password_reset.requested"
)

// AllEventTypes lists every event the services emit.
var AllEventTypes = []EventType{
	EventGrievanceSubmitted,
	EventGrievanceStatusChanged,
	EventIdentityDeleted,
	EventIdentityRoleChanged,
	EventPasswordResetRequested,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id,omitempty"`
	Role domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// GrievanceSubmittedPayload payload.
type GrievanceSubmittedPayload struct {
	Category      domain.Category `json:"category"`
	SubmitterName string          `json:"submitter_name"`
	HasAttachment bool            `json:"has_attachment"`
}

// GrievanceStatusChangedPayload payload.
type GrievanceStatusChangedPayload struct {
	SubmitterID string        `json:"submitter_id"`
	OldStatus   domain.Status `json:"old_status"`
	NewStatus   domain.Status `json:"new_status"`
	Notes       *string       `json:"notes,omitempty"`
}

// IdentityRoleChangedPayload payload.
type IdentityRoleChangedPayload struct {
	OldRole domain.Role `json:"old_role"`
	NewRole domain.Role `json:"new_role"`
}

// IdentityDeletedPayload payload.
type IdentityDeletedPayload struct {
	Role domain.Role `json:"role"`
}

// PasswordResetRequestedPayload records a delivered reset code. The code
// itself only ever travels in the mail.
type PasswordResetRequestedPayload struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}
