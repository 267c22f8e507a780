// Package transition coordinates status changes and manual assignments.
// Each operation is one unit of work: the CRM record, the optional
// auto-assignment and the audit entries commit together or not at all.
package transition

import (
	"context"
	"errors"
	"time"

	"leadconsole_backend/internal/events"
	"leadconsole_backend/internal/leads/audit"
	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/records"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/platform/apperr"
	"leadconsole_backend/platform/lock"
	"leadconsole_backend/platform/logger"

	"github.com/google/uuid"
)

// RuleFinder resolves the auto-assignment rule for a lead.
type RuleFinder interface {
	FindMatchingRule(ctx context.Context, category *string, status string) (*repository.Rule, error)
}

type Service struct {
	store  repository.Store
	rules  RuleFinder
	locker lock.Locker
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
}

func New(store repository.Store, rules RuleFinder, locker lock.Locker, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, rules: rules, locker: locker, bus: bus, log: log, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AutoAssignment describes a rule that fired during a status change.
type AutoAssignment struct {
	RuleID      uuid.UUID
	RuleName    string
	CounselorID uuid.UUID
	CatchAll    bool
}

// Result reports what a coordinator call did. Changed is false when the
// request matched the current state and nothing was written.
type Result struct {
	SessionID      string
	Changed        bool
	PreviousStatus string
	Status         string
	AssignedTo     *uuid.UUID
	LastContacted  *time.Time
	AutoAssigned   *AutoAssignment
	Entries        []repository.AuditEntry
}

// errUnchanged aborts a unit of work that turned out to be a no-op.
var errUnchanged = errors.New("unchanged")

func (s *Service) acquire(ctx context.Context, sessionID string) (func(), error) {
	release, err := s.locker.Acquire(ctx, "lead:"+sessionID)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperr.Conflict("lead is being updated by someone else, try again")
		}
		return nil, err
	}
	return release, nil
}

func (s *Service) loadIntake(ctx context.Context, sessionID string) (repository.Intake, error) {
	intake, err := s.store.GetIntake(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Intake{}, apperr.NotFound("lead not found")
		}
		return repository.Intake{}, err
	}
	return intake, nil
}

// currentCrm returns the CRM record or a zero record carrying the default
// status when the lead is not in the CRM yet.
func (s *Service) currentCrm(ctx context.Context, sessionID string) (repository.CrmRecord, error) {
	rec, err := s.store.GetCrmRecord(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.CrmRecord{SessionID: sessionID, LeadStatus: domain.DefaultStatus}, nil
	}
	return rec, err
}

// ChangeStatus moves a lead to newStatus with a mandatory comment.
func (s *Service) ChangeStatus(ctx context.Context, actor domain.Actor, sessionID, newStatus, comment string) (Result, error) {
	if !domain.IsKnownStatus(newStatus) {
		return Result{}, apperr.Validation("unknown lead status: " + newStatus)
	}

	release, err := s.acquire(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	intake, err := s.loadIntake(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	current, err := s.currentCrm(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if current.LeadStatus == newStatus {
		return unchangedResult(current), nil
	}

	text, err := audit.ValidateComment(comment)
	if err != nil {
		return Result{}, err
	}
	touch := domain.ShouldTouchLastContacted(newStatus, text)

	rule, err := s.rules.FindMatchingRule(ctx, intake.LeadCategory, newStatus)
	if err != nil {
		s.log.WithContext(ctx).AuxiliaryFailure("assignment_rule_lookup", sessionID, err)
		rule = nil
	}

	at := s.now()
	result := Result{SessionID: sessionID, Changed: true, Status: newStatus}
	var crmCreated bool

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		rec, created, err := records.Ensure(ctx, tx, sessionID, at)
		if err != nil {
			return err
		}
		if rec.LeadStatus == newStatus {
			return errUnchanged
		}
		crmCreated = created
		result.PreviousStatus = rec.LeadStatus

		updated, err := tx.UpdateStatus(ctx, sessionID, newStatus, touch, at)
		if err != nil {
			return err
		}
		result.AssignedTo = updated.AssignedTo
		result.LastContacted = updated.LastContacted

		if rule != nil {
			auto, entry, err := s.autoAssign(ctx, tx, sessionID, *rule, result.PreviousStatus, at)
			if err != nil {
				s.log.WithContext(ctx).AuxiliaryFailure("auto_assignment", sessionID, err)
			} else if auto != nil {
				result.AutoAssigned = auto
				result.AssignedTo = &auto.CounselorID
				result.Entries = append(result.Entries, entry)
			}
		}

		entry, err := audit.Record(ctx, tx, audit.Entry{
			SessionID:  sessionID,
			Actor:      actor,
			Kind:       domain.AuditKindStatusChange,
			Comment:    text,
			LeadStatus: newStatus,
			At:         at,
		})
		if err != nil {
			return err
		}
		result.Entries = append(result.Entries, entry)
		return nil
	})
	if errors.Is(err, errUnchanged) {
		rec, err := s.currentCrm(ctx, sessionID)
		if err != nil {
			return Result{}, err
		}
		return unchangedResult(rec), nil
	}
	if err != nil {
		return Result{}, err
	}

	s.publishStatusChange(ctx, actor, result, crmCreated, touch, at)
	return result, nil
}

func unchangedResult(rec repository.CrmRecord) Result {
	return Result{
		SessionID:      rec.SessionID,
		Changed:        false,
		PreviousStatus: rec.LeadStatus,
		Status:         rec.LeadStatus,
		AssignedTo:     rec.AssignedTo,
		LastContacted:  rec.LastContacted,
	}
}

// autoAssign runs inside a nested unit so a failure leaves the status change
// intact. The system entry is stamped with the status the lead had before
// the change that triggered the rule.
func (s *Service) autoAssign(ctx context.Context, tx repository.Store, sessionID string, rule repository.Rule, previousStatus string, at time.Time) (*AutoAssignment, repository.AuditEntry, error) {
	var auto *AutoAssignment
	var entry repository.AuditEntry

	err := tx.WithinTx(ctx, func(sp repository.Store) error {
		applied, err := sp.AssignIfUnassigned(ctx, sessionID, rule.AssignedCounselor, at)
		if err != nil || !applied {
			return err
		}

		counselorName := rule.AssignedCounselor.String()
		if counselor, err := sp.GetCounselor(ctx, rule.AssignedCounselor); err == nil {
			counselorName = counselor.Name
		}

		entry, err = audit.Record(ctx, sp, audit.Entry{
			SessionID:  sessionID,
			Actor:      domain.SystemActor(),
			Kind:       domain.AuditKindAutoAssignment,
			Comment:    audit.AutoAssignmentText(rule, counselorName),
			LeadStatus: previousStatus,
			At:         at,
		})
		if err != nil {
			return err
		}

		auto = &AutoAssignment{
			RuleID:      rule.ID,
			RuleName:    rule.Name,
			CounselorID: rule.AssignedCounselor,
			CatchAll:    rule.IsCatchAll(),
		}
		return nil
	})
	if err != nil {
		return nil, repository.AuditEntry{}, err
	}
	return auto, entry, nil
}

func (s *Service) publishStatusChange(ctx context.Context, actor domain.Actor, result Result, crmCreated, touched bool, at time.Time) {
	base := events.NewBaseEventAt(at)
	if crmCreated {
		s.bus.Publish(ctx, events.LeadCrmRecordCreated{BaseEvent: base, SessionID: result.SessionID})
	}
	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent:      base,
		SessionID:      result.SessionID,
		OldStatus:      result.PreviousStatus,
		NewStatus:      result.Status,
		ActorID:        actor.CounselorID,
		TouchedContact: touched,
	})
	if result.AutoAssigned != nil {
		s.bus.Publish(ctx, events.LeadAutoAssigned{
			BaseEvent:   base,
			SessionID:   result.SessionID,
			RuleID:      result.AutoAssigned.RuleID,
			CounselorID: result.AutoAssigned.CounselorID,
			CatchAll:    result.AutoAssigned.CatchAll,
		})
	}

	s.log.WithContext(ctx).LeadEvent("status_changed", result.SessionID,
		"from", result.PreviousStatus,
		"to", result.Status,
		"auto_assigned", result.AutoAssigned != nil,
	)
}
