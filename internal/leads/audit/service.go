package audit

import (
	"context"
	"errors"
	"time"

	"leadconsole_backend/internal/events"
	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/records"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/platform/apperr"
	"leadconsole_backend/platform/logger"
)

// Service handles free-text comments and timeline reads.
type Service struct {
	store repository.Store
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

func New(store repository.Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AddComment appends a free-text comment stamped with the current status,
// creating the CRM record first when needed.
func (s *Service) AddComment(ctx context.Context, actor domain.Actor, sessionID, text string) (repository.AuditEntry, error) {
	comment, err := ValidateComment(text)
	if err != nil {
		return repository.AuditEntry{}, err
	}

	at := s.now()
	var entry repository.AuditEntry
	var created bool
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		rec, wasCreated, err := records.Ensure(ctx, tx, sessionID, at)
		if err != nil {
			return err
		}
		created = wasCreated
		entry, err = Record(ctx, tx, Entry{
			SessionID:  sessionID,
			Actor:      actor,
			Kind:       domain.AuditKindComment,
			Comment:    comment,
			LeadStatus: rec.LeadStatus,
			At:         at,
		})
		return err
	})
	if err != nil {
		return repository.AuditEntry{}, err
	}

	if created {
		s.bus.Publish(ctx, events.LeadCrmRecordCreated{BaseEvent: events.NewBaseEventAt(at), SessionID: sessionID})
	}
	s.bus.Publish(ctx, events.LeadCommented{BaseEvent: events.NewBaseEventAt(at), SessionID: sessionID, ActorID: actor.CounselorID})
	s.log.LeadEvent("comment_added", sessionID, "entry_id", entry.ID)
	return entry, nil
}

// List returns the entries of a lead in write order.
func (s *Service) List(ctx context.Context, sessionID string) ([]repository.AuditEntry, error) {
	if _, err := s.store.GetIntake(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, err
	}
	return s.store.ListAuditEntries(ctx, sessionID)
}
