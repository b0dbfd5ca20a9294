package domain

import "time"

// Status enumerates lifecycle states for grievances.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusEscalated  Status = "ESCALATED"
)

// Statuses lists every lifecycle state.
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusEscalated}

// ParseStatus normalizes raw into a known status.
func ParseStatus(raw string) (Status, bool) {
	return matchEnum(raw, Statuses)
}

// Valid reports whether s is already in canonical form.
func (s Status) Valid() bool {
	return isKnown(s, Statuses)
}

// Category classifies a grievance and drives faculty visibility.
type Category string

const (
	CategoryAcademic       Category = "ACADEMIC"
	CategoryFacility       Category = "FACILITY"
	CategoryAdministration Category = "ADMINISTRATION"
	CategoryHarassment     Category = "HARASSMENT"
	CategoryFaculty        Category = "FACULTY"
	CategoryOther          Category = "OTHER"
)

// Categories lists every grievance category.
var Categories = []Category{
	CategoryAcademic,
	CategoryFacility,
	CategoryAdministration,
	CategoryHarassment,
	CategoryFaculty,
	CategoryOther,
}

// ParseCategory normalizes raw into a known category.
func ParseCategory(raw string) (Category, bool) {
	return matchEnum(raw, Categories)
}

// Valid reports whether c is already in canonical form.
func (c Category) Valid() bool {
	return isKnown(c, Categories)
}

// Attachment references the file uploaded with a grievance.
type Attachment struct {
	Key         string
	FileName    string
	ContentType string
	SizeBytes   int64
}

// Grievance is a ticket raised by a student or faculty member.
type Grievance struct {
	ID              int64
	SubmitterID     string
	SubmitterName   string
	Category        Category
	Description     string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolutionNotes *string
	Attachment      *Attachment
}

// Clone returns a deep copy so callers can hand out grievances without
// sharing pointer fields.
func (g Grievance) Clone() Grievance {
	out := g
	if g.ResolutionNotes != nil {
		notes := *g.ResolutionNotes
		out.ResolutionNotes = &notes
	}
	if g.Attachment != nil {
		att := *g.Attachment
		out.Attachment = &att
	}
	return out
}

// GrievanceHistory is an immutable audit entry for one status transition.
type GrievanceHistory struct {
	ID          int64
	GrievanceID int64
	ActorID     string
	ActorRole   Role
	OldStatus   Status
	NewStatus   Status
	Notes       *string
	CreatedAt   time.Time
}
