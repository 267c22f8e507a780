// Package events defines the lead workflow events. The bus itself lives in
// platform/events.
package events

import (
	"leadconsole_backend/platform/events"
	"leadconsole_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	InMemoryBus = events.InMemoryBus
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// NewInMemoryBus returns the process-local bus used by the API and scheduler.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

var (
	NewBaseEvent   = events.NewBaseEvent
	NewBaseEventAt = events.NewBaseEventAt
)

// =============================================================================
// Lead Workflow Events
// =============================================================================

// LeadCrmRecordCreated is published the first time a lead enters the CRM.
type LeadCrmRecordCreated struct {
	BaseEvent
	SessionID string `json:"sessionId"`
}

func (e LeadCrmRecordCreated) EventName() string { return "leads.crm_record.created" }

// LeadStatusChanged is published after a status change commits.
type LeadStatusChanged struct {
	BaseEvent
	SessionID      string     `json:"sessionId"`
	OldStatus      string     `json:"oldStatus"`
	NewStatus      string     `json:"newStatus"`
	ActorID        *uuid.UUID `json:"actorId,omitempty"`
	TouchedContact bool       `json:"touchedContact"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status.changed" }

// LeadAutoAssigned is published when an assignment rule fired.
type LeadAutoAssigned struct {
	BaseEvent
	SessionID   string    `json:"sessionId"`
	RuleID      uuid.UUID `json:"ruleId"`
	CounselorID uuid.UUID `json:"counselorId"`
	CatchAll    bool      `json:"catchAll"`
}

func (e LeadAutoAssigned) EventName() string { return "leads.lead.auto_assigned" }

// LeadAssigned is published after a manual assignment or unassignment.
type LeadAssigned struct {
	BaseEvent
	SessionID     string     `json:"sessionId"`
	PreviousAgent *uuid.UUID `json:"previousAgentId,omitempty"`
	NewAgent      *uuid.UUID `json:"newAgentId,omitempty"`
	ActorID       *uuid.UUID `json:"actorId,omitempty"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadCommented is published when a free-text audit comment is added.
type LeadCommented struct {
	BaseEvent
	SessionID string     `json:"sessionId"`
	ActorID   *uuid.UUID `json:"actorId,omitempty"`
}

func (e LeadCommented) EventName() string { return "leads.lead.commented" }

// LeadsExportTransitioned is published once per committed export batch.
type LeadsExportTransitioned struct {
	BaseEvent
	SessionIDs []string `json:"sessionIds"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Actor      string   `json:"actor"`
}

func (e LeadsExportTransitioned) EventName() string { return "leads.export.transitioned" }

// ExportRecordsReconciled is published after a reconciliation pass.
type ExportRecordsReconciled struct {
	BaseEvent
	Created        int `json:"created"`
	AlreadyPresent int `json:"alreadyPresent"`
}

func (e ExportRecordsReconciled) EventName() string { return "leads.export.reconciled" }

// AssignmentRuleCreated is published when an admin adds a rule.
type AssignmentRuleCreated struct {
	BaseEvent
	RuleID   uuid.UUID `json:"ruleId"`
	CatchAll bool      `json:"catchAll"`
}

func (e AssignmentRuleCreated) EventName() string { return "leads.rule.created" }
