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

	"github.com/google/uuid"
)

// ValidateAssignee checks that counselorID, when set, names an active
// counselor. It returns the counselor for display text.
func (s *Service) ValidateAssignee(ctx context.Context, counselorID *uuid.UUID) (*repository.Counselor, error) {
	if counselorID == nil {
		return nil, nil
	}
	counselor, err := s.store.GetCounselor(ctx, *counselorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("counselor not found")
		}
		return nil, err
	}
	if !counselor.IsActive {
		return nil, apperr.Validation("counselor is inactive")
	}
	return &counselor, nil
}

func sameAssignee(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Assign sets or clears the counselor of a lead. comment is optional; when
// empty a system text describing the change is recorded instead.
func (s *Service) Assign(ctx context.Context, actor domain.Actor, sessionID string, counselorID *uuid.UUID, comment string) (Result, error) {
	text, err := audit.ValidateOptionalComment(comment)
	if err != nil {
		return Result{}, err
	}
	next, err := s.ValidateAssignee(ctx, counselorID)
	if err != nil {
		return Result{}, err
	}

	release, err := s.acquire(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if _, err := s.loadIntake(ctx, sessionID); err != nil {
		return Result{}, err
	}
	current, err := s.currentCrm(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if sameAssignee(current.AssignedTo, counselorID) {
		return unchangedResult(current), nil
	}

	at := s.now()
	result := Result{SessionID: sessionID, Changed: true}
	var previousID *uuid.UUID
	var crmCreated bool

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		rec, created, err := records.Ensure(ctx, tx, sessionID, at)
		if err != nil {
			return err
		}
		if sameAssignee(rec.AssignedTo, counselorID) {
			return errUnchanged
		}
		crmCreated = created
		previousID = rec.AssignedTo

		updated, err := tx.SetAssignee(ctx, sessionID, counselorID, at)
		if err != nil {
			return err
		}
		result.PreviousStatus = updated.LeadStatus
		result.Status = updated.LeadStatus
		result.AssignedTo = updated.AssignedTo
		result.LastContacted = updated.LastContacted

		entryText := text
		if entryText == "" {
			entryText = audit.AssignmentText(s.counselorOrPlaceholder(ctx, tx, previousID), next)
		}
		entry, err := audit.Record(ctx, tx, audit.Entry{
			SessionID:  sessionID,
			Actor:      actor,
			Kind:       domain.AuditKindAssignment,
			Comment:    entryText,
			LeadStatus: updated.LeadStatus,
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

	s.publishAssignment(ctx, actor, sessionID, previousID, counselorID, crmCreated, at)
	return result, nil
}

// counselorOrPlaceholder resolves a counselor for display, falling back to
// the raw id when the row cannot be read.
func (s *Service) counselorOrPlaceholder(ctx context.Context, store repository.CounselorReader, id *uuid.UUID) *repository.Counselor {
	if id == nil {
		return nil
	}
	counselor, err := store.GetCounselor(ctx, *id)
	if err != nil {
		return &repository.Counselor{ID: *id, Name: id.String()}
	}
	return &counselor
}

func (s *Service) publishAssignment(ctx context.Context, actor domain.Actor, sessionID string, previous, next *uuid.UUID, crmCreated bool, at time.Time) {
	base := events.NewBaseEventAt(at)
	if crmCreated {
		s.bus.Publish(ctx, events.LeadCrmRecordCreated{BaseEvent: base, SessionID: sessionID})
	}
	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:     base,
		SessionID:     sessionID,
		PreviousAgent: previous,
		NewAgent:      next,
		ActorID:       actor.CounselorID,
	})
	s.log.WithContext(ctx).LeadEvent("assigned", sessionID, "unassigned", next == nil)
}
