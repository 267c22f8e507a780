package transport

import (
	"time"

	"github.com/google/uuid"
)

// =====================================
// Leads
// =====================================

type ListLeadsQuery struct {
	Segment         string   `form:"segment" validate:"omitempty,leadsegment"`
	Statuses        []string `form:"status" validate:"omitempty,max=15,dive,leadstatus"`
	IncludeNotInCRM bool     `form:"includeNotInCrm"`
	Categories      []string `form:"category" validate:"omitempty,max=5,dive,leadcategory"`
	AssignedTo      string   `form:"assignedTo" validate:"omitempty,uuid"`
	Search          string   `form:"search" validate:"max=100"`
	Page            int      `form:"page" validate:"omitempty,min=1"`
	PageSize        int      `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type CrmResponse struct {
	LeadStatus     string     `json:"leadStatus"`
	AssignedTo     *uuid.UUID `json:"assignedTo"`
	AssignedToName *string    `json:"assignedToName"`
	LastContacted  *time.Time `json:"lastContacted"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type ExportResponse struct {
	Status          string     `json:"status"`
	ExportDate      *time.Time `json:"exportDate"`
	ExportedBy      *string    `json:"exportedBy"`
	LastMessageDate *time.Time `json:"lastMessageDate"`
	Notes           string     `json:"notes"`
}

type LeadResponse struct {
	SessionID           string          `json:"sessionId"`
	StudentName         string          `json:"studentName"`
	ParentName          string          `json:"parentName"`
	Phone               string          `json:"phone"`
	Email               string          `json:"email"`
	City                string          `json:"city"`
	CurrentGrade        string          `json:"currentGrade"`
	Curriculum          string          `json:"curriculum"`
	TargetDegree        string          `json:"targetDegree"`
	TargetCountries     string          `json:"targetCountries"`
	LeadCategory        *string         `json:"leadCategory"`
	IsFormFilled        bool            `json:"isFormFilled"`
	IsCounsellingBooked bool            `json:"isCounsellingBooked"`
	SelectedDate        *time.Time      `json:"selectedDate"`
	CreatedAt           time.Time       `json:"createdAt"`
	LeadStatus          string          `json:"leadStatus"`
	InCRM               bool            `json:"inCrm"`
	CRM                 *CrmResponse    `json:"crm"`
	Export              *ExportResponse `json:"export"`
	Segments            []string        `json:"segments"`
	FunnelStage         string          `json:"funnelStage"`
	ExportBuckets       []string        `json:"exportBuckets"`
}

type LeadListResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

type SegmentCountsResponse struct {
	All                int `json:"all"`
	NewlySubmitted     int `json:"newlySubmitted"`
	QualifiedNotBooked int `json:"qualifiedNotBooked"`
	Booked             int `json:"booked"`
	Unassigned         int `json:"unassigned"`
}

type FunnelCountsResponse struct {
	All                      int `json:"all"`
	Booked                   int `json:"booked"`
	QualifiedNotBooked       int `json:"qualifiedNotBooked"`
	FormCompletedUnqualified int `json:"formCompletedUnqualified"`
	Other                    int `json:"other"`
}

type CountsResponse struct {
	Segments SegmentCountsResponse `json:"segments"`
	Funnel   FunnelCountsResponse  `json:"funnel"`
}

type AuditEntryResponse struct {
	ID          int64      `json:"id"`
	Kind        string     `json:"kind"`
	CounselorID *uuid.UUID `json:"counselorId"`
	AuthorName  string     `json:"authorName"`
	Comment     string     `json:"comment"`
	LeadStatus  string     `json:"leadStatus"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type TimelineItemResponse struct {
	Kind        string     `json:"kind"`
	At          time.Time  `json:"at"`
	AuditID     *int64     `json:"auditId,omitempty"`
	CounselorID *uuid.UUID `json:"counselorId,omitempty"`
	AuthorName  string     `json:"authorName,omitempty"`
	Comment     string     `json:"comment,omitempty"`
	LeadStatus  string     `json:"leadStatus,omitempty"`
}

type AddCommentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

type UpdateStatusRequest struct {
	Status  string `json:"status" validate:"required,leadstatus"`
	Comment string `json:"comment"`
}

type AssignLeadRequest struct {
	CounselorID OptionalUUID `json:"counselorId" validate:"-"`
	Comment     string       `json:"comment"`
}

type AutoAssignmentResponse struct {
	RuleID      uuid.UUID `json:"ruleId"`
	RuleName    string    `json:"ruleName"`
	CounselorID uuid.UUID `json:"counselorId"`
	CatchAll    bool      `json:"catchAll"`
}

type TransitionResponse struct {
	SessionID      string                  `json:"sessionId"`
	Changed        bool                    `json:"changed"`
	PreviousStatus string                  `json:"previousStatus"`
	Status         string                  `json:"status"`
	AssignedTo     *uuid.UUID              `json:"assignedTo"`
	LastContacted  *time.Time              `json:"lastContacted"`
	AutoAssigned   *AutoAssignmentResponse `json:"autoAssigned,omitempty"`
	Entries        []AuditEntryResponse    `json:"entries"`
	Message        string                  `json:"message,omitempty"`
}

// =====================================
// Bulk
// =====================================

type BulkAssignRequest struct {
	SessionIDs  []string     `json:"sessionIds" validate:"required,min=1,max=500,dive,required"`
	CounselorID OptionalUUID `json:"counselorId" validate:"-"`
	Comment     string       `json:"comment"`
}

type BulkStatusRequest struct {
	SessionIDs []string `json:"sessionIds" validate:"required,min=1,max=500,dive,required"`
	Status     string   `json:"status" validate:"required,leadstatus"`
	Comment    string   `json:"comment"`
}

type BulkResultResponse struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Unchanged int `json:"unchanged"`
}

// =====================================
// Exports
// =====================================

type ExportBucketsResponse struct {
	NotBooked      int            `json:"notBooked"`
	BookedNearTerm int            `json:"bookedNearTerm"`
	BookedFarTerm  int            `json:"bookedFarTerm"`
	Exported       int            `json:"exported"`
	ByStage        map[string]int `json:"byStage"`
}

type ExportBucketQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=1000"`
}

type ExportStagesQuery struct {
	Statuses        []string `form:"status" validate:"omitempty,max=15,dive,leadstatus"`
	IncludeNotInCRM bool     `form:"includeNotInCrm"`
	Limit           int      `form:"limit" validate:"omitempty,min=1,max=1000"`
}

type ExportLeadsRequest struct {
	SessionIDs []string `json:"sessionIds" validate:"required,min=1,max=1000,dive,required"`
}

type ExportStatusRequest struct {
	SessionIDs []string `json:"sessionIds" validate:"required,min=1,max=1000,dive,required"`
	Status     string   `json:"status" validate:"required,exportstatus"`
	Notes      string   `json:"notes" validate:"max=2000"`
}

type SendMessageRequest struct {
	SessionIDs []string `json:"sessionIds" validate:"required,min=1,max=500,dive,required"`
	Message    string   `json:"message" validate:"required,max=4096"`
}

type ReconcileResponse struct {
	Created        int `json:"created"`
	AlreadyPresent int `json:"alreadyPresent"`
}

// =====================================
// Assignment rules
// =====================================

type CreateRuleRequest struct {
	Name                string     `json:"name" validate:"max=200"`
	Priority            int        `json:"priority" validate:"min=0"`
	TriggerCategory     *string    `json:"triggerCategory" validate:"omitempty,leadcategory"`
	TriggerStatus       *string    `json:"triggerStatus" validate:"omitempty,leadstatus"`
	AssignedCounselorID *uuid.UUID `json:"assignedCounselorId"`
	StartDate           *string    `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate             *string    `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	IsActive            *bool      `json:"isActive"`
	AllowCatchAll       bool       `json:"allowCatchAll"`
}

type UpdateRuleRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type RuleResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	Priority            int        `json:"priority"`
	TriggerCategory     *string    `json:"triggerCategory"`
	TriggerStatus       *string    `json:"triggerStatus"`
	AssignedCounselorID uuid.UUID  `json:"assignedCounselorId"`
	StartDate           string     `json:"startDate"`
	EndDate             *string    `json:"endDate"`
	IsActive            bool       `json:"isActive"`
	IsCatchAll          bool       `json:"isCatchAll"`
	CreatedBy           *uuid.UUID `json:"createdBy"`
	CreatedAt           time.Time  `json:"createdAt"`
}

type CreateRuleResponse struct {
	Rule    RuleResponse `json:"rule"`
	Warning string       `json:"warning,omitempty"`
}
