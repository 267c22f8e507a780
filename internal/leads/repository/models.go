package repository

import (
	"time"

	"github.com/google/uuid"
)

// Intake is the immutable form submission a lead starts from.
type Intake struct {
	SessionID           string
	StudentName         string
	ParentName          string
	Phone               string
	Email               string
	City                string
	CurrentGrade        string
	Curriculum          string
	TargetDegree        string
	TargetCountries     string
	LeadCategory        *string
	IsFormFilled        bool
	IsCounsellingBooked bool
	SelectedDate        *time.Time
	CreatedAt           time.Time
}

// CrmRecord is the mutable workflow state layered on an intake.
type CrmRecord struct {
	SessionID     string
	LeadStatus    string
	AssignedTo    *uuid.UUID
	LastContacted *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ExportRecord tracks the WhatsApp campaign hand-off of a lead.
type ExportRecord struct {
	SessionID       string
	ExportStatus    string
	ExportDate      *time.Time
	ExportedBy      *string
	LastMessageDate *time.Time
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Counselor struct {
	ID       uuid.UUID
	Name     string
	Email    string
	IsActive bool
}

// Lead is the read-only composition of an intake with its optional CRM
// record, export record and assigned counselor.
type Lead struct {
	Intake
	CRM       *CrmRecord
	Export    *ExportRecord
	Counselor *Counselor
}

// CrmStatus returns the CRM stage, or nil when no CRM record exists.
func (l Lead) CrmStatus() *string {
	if l.CRM == nil {
		return nil
	}
	return &l.CRM.LeadStatus
}

type AuditEntry struct {
	ID          int64
	SessionID   string
	CounselorID *uuid.UUID
	AuthorName  string
	Kind        string
	Comment     string
	LeadStatus  string
	CreatedAt   time.Time
}

type CreateAuditEntryParams struct {
	SessionID   string
	CounselorID *uuid.UUID
	AuthorName  string
	Kind        string
	Comment     string
	LeadStatus  string
	CreatedAt   time.Time
}

// Rule is an assignment rule. A nil trigger matches any value.
type Rule struct {
	ID                uuid.UUID
	Name              string
	Priority          int
	TriggerCategory   *string
	TriggerStatus     *string
	AssignedCounselor uuid.UUID
	StartDate         time.Time
	EndDate           *time.Time
	IsActive          bool
	CreatedBy         *uuid.UUID
	CreatedAt         time.Time
}

// IsCatchAll reports whether the rule has no trigger at all.
func (r Rule) IsCatchAll() bool {
	return r.TriggerCategory == nil && r.TriggerStatus == nil
}

type CreateRuleParams struct {
	Name              string
	Priority          int
	TriggerCategory   *string
	TriggerStatus     *string
	AssignedCounselor uuid.UUID
	StartDate         time.Time
	EndDate           *time.Time
	IsActive          bool
	CreatedBy         *uuid.UUID
	CreatedAt         time.Time
}

// ListParams filters composed leads. Empty fields do not filter.
type ListParams struct {
	Segment             string
	Statuses            []string
	IncludeNotInCRM     bool
	Categories          []string
	AssignedTo          *uuid.UUID
	Search              string
	QualifiedCategories []string
	Offset              int
	Limit               int
}

type SegmentCounts struct {
	All                int
	NewlySubmitted     int
	QualifiedNotBooked int
	Booked             int
	Unassigned         int
}

// FunnelCounts is an exact partition of All.
type FunnelCounts struct {
	All                      int
	Booked                   int
	QualifiedNotBooked       int
	FormCompletedUnqualified int
	Other                    int
}

// ExportTransitionParams moves every listed lead from From to To.
type ExportTransitionParams struct {
	SessionIDs     []string
	From           string
	To             string
	At             time.Time
	ExportedBy     *string
	SetExportDate  bool
	SetMessageDate bool
	// NoteFor returns the line appended to a lead's notes.
	NoteFor func(sessionID string) string
}

// ExportCandidateFilter narrows the leads fed into bucket classification.
type ExportCandidateFilter struct {
	QualifiedCategories []string
	ExportStatuses      []string
	Limit               int
}
