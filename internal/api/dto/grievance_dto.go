package dto

import (
	"fmt"
	"time"

	"github.com/spec-kit/grievance-portal/internal/domain"
)

// UpdateGrievanceRequest is the PUT /update/:id payload.
type UpdateGrievanceRequest struct {
	Status          string  `json:"status" validate:"required,grievance_status"`
	ResolutionNotes *string `json:"resolutionNotes"`
}

// GrievanceResponse is the wire form of a grievance.
type GrievanceResponse struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	Category        string    `json:"category"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	ResolutionNotes *string   `json:"resolutionNotes"`
	FileName        *string   `json:"fileName"`
	FileType        *string   `json:"fileType"`
}

// NewGrievanceResponse converts a domain grievance.
func NewGrievanceResponse(g domain.Grievance) GrievanceResponse {
	resp := GrievanceResponse{
		ID:              g.ID,
		UserID:          g.SubmitterID,
		UserName:        g.SubmitterName,
		Category:        string(g.Category),
		Description:     g.Description,
		Status:          string(g.Status),
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
		ResolutionNotes: g.ResolutionNotes,
	}
	if g.Attachment != nil {
		name, contentType := g.Attachment.FileName, g.Attachment.ContentType
		resp.FileName = &name
		resp.FileType = &contentType
	}
	return resp
}

// NewGrievanceResponses converts a list, never returning nil.
func NewGrievanceResponses(list []domain.Grievance) []GrievanceResponse {
	out := make([]GrievanceResponse, 0, len(list))
	for _, g := range list {
		out = append(out, NewGrievanceResponse(g))
	}
	return out
}

// ToDomain normalizes the enums and rebuilds the grievance. The storage
// key is never on the wire, so Attachment carries name and type only.
func (r GrievanceResponse) ToDomain() (domain.Grievance, error) {
	status, ok := domain.ParseStatus(r.Status)
	if !ok {
		return domain.Grievance{}, fmt.Errorf("grievance %d: unknown status %q", r.ID, r.Status)
	}
	category, ok := domain.ParseCategory(r.Category)
	if !ok {
		return domain.Grievance{}, fmt.Errorf("grievance %d: unknown category %q", r.ID, r.Category)
	}
	g := domain.Grievance{
		ID:              r.ID,
		SubmitterID:     r.UserID,
		SubmitterName:   r.UserName,
		Category:        category,
		Description:     r.Description,
		Status:          status,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ResolutionNotes: r.ResolutionNotes,
	}
	if r.FileName != nil {
		g.Attachment = &domain.Attachment{FileName: *r.FileName}
		if r.FileType != nil {
			g.Attachment.ContentType = *r.FileType
		}
	}
	return g, nil
}

// HistoryResponse is one recorded status change.
type HistoryResponse struct {
	ID          int64         `json:"id"`
	GrievanceID int64         `json:"grievanceId"`
	ActorID     string        `json:"actorId"`
	ActorRole   domain.Role   `json:"actorRole"`
	OldStatus   domain.Status `json:"oldStatus"`
	NewStatus   domain.Status `json:"newStatus"`
	Notes       *string       `json:"notes"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// NewHistoryResponses converts history rows.
func NewHistoryResponses(entries []domain.GrievanceHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryResponse{
			ID:          h.ID,
			GrievanceID: h.GrievanceID,
			ActorID:     h.ActorID,
			ActorRole:   h.ActorRole,
			OldStatus:   h.OldStatus,
			NewStatus:   h.NewStatus,
			Notes:       h.Notes,
			CreatedAt:   h.CreatedAt,
		})
	}
	return out
}
