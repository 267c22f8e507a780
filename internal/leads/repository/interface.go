package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// IntakeReader reads form submissions. Intakes are never written here.
type IntakeReader interface {
	GetIntake(ctx context.Context, sessionID string) (Intake, error)
	ListSessionIDsWithoutExport(ctx context.Context) ([]string, error)
}

// LeadReader serves composed lead projections.
type LeadReader interface {
	GetLead(ctx context.Context, sessionID string) (Lead, error)
	ListLeads(ctx context.Context, params ListParams) ([]Lead, int, error)
	CountSegments(ctx context.Context, qualifiedCategories []string) (SegmentCounts, error)
	CountFunnel(ctx context.Context, qualifiedCategories []string) (FunnelCounts, error)
	// CountByStage groups every lead by CRM status; leads without a CRM
	// record are keyed by notInCRM.
	CountByStage(ctx context.Context, notInCRM string) (map[string]int, error)
	ListExportCandidates(ctx context.Context, filter ExportCandidateFilter) ([]Lead, error)
}

// CrmStore owns the mutable CRM record.
type CrmStore interface {
	GetCrmRecord(ctx context.Context, sessionID string) (CrmRecord, error)
	// InsertCrmRecord creates the record with the default stage unless one
	// exists. created reports whether this call inserted it.
	InsertCrmRecord(ctx context.Context, sessionID, status string, at time.Time) (created bool, err error)
	// UpdateStatus sets the stage. When touchLastContacted is set,
	// last_contacted moves forward to at but never backwards.
	UpdateStatus(ctx context.Context, sessionID, status string, touchLastContacted bool, at time.Time) (CrmRecord, error)
	// AssignIfUnassigned is a conditional write; applied is false when the
	// lead already had an assignee.
	AssignIfUnassigned(ctx context.Context, sessionID string, counselorID uuid.UUID, at time.Time) (applied bool, err error)
	SetAssignee(ctx context.Context, sessionID string, counselorID *uuid.UUID, at time.Time) (CrmRecord, error)
}

// AuditStore is the append-only audit log.
type AuditStore interface {
	AppendAuditEntry(ctx context.Context, params CreateAuditEntryParams) (AuditEntry, error)
	ListAuditEntries(ctx context.Context, sessionID string) ([]AuditEntry, error)
}

// RuleStore persists assignment rules.
type RuleStore interface {
	// ListEffectiveRules returns active rules whose window contains day,
	// ordered by priority ascending then creation time descending.
	ListEffectiveRules(ctx context.Context, day time.Time) ([]Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)
	GetRule(ctx context.Context, id uuid.UUID) (Rule, error)
	CreateRule(ctx context.Context, params CreateRuleParams) (Rule, error)
	SetRuleActive(ctx context.Context, id uuid.UUID, active bool) (Rule, error)
}

type CounselorReader interface {
	GetCounselor(ctx context.Context, id uuid.UUID) (Counselor, error)
	GetCounselorByEmail(ctx context.Context, email string) (Counselor, error)
}

// ExportStore owns export records.
type ExportStore interface {
	GetExportRecords(ctx context.Context, sessionIDs []string) (map[string]ExportRecord, error)
	// CreateExportRecord inserts a not_exported record and returns
	// ErrDuplicate when one already exists.
	CreateExportRecord(ctx context.Context, sessionID string, at time.Time) error
	// TransitionExports applies a conditional batch update and returns the
	// number of rows that were in the From state.
	TransitionExports(ctx context.Context, params ExportTransitionParams) (int, error)
}

// Store is everything the workflow services need, plus transactions.
// Calling WithinTx on a Store that is already transactional opens a nested
// unit that can be rolled back on its own.
type Store interface {
	IntakeReader
	LeadReader
	CrmStore
	AuditStore
	RuleStore
	CounselorReader
	ExportStore
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
