package records

import (
	"context"
	"errors"
	"time"

	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/platform/apperr"
)

// EnsureStore is the subset of the store Ensure needs.
type EnsureStore interface {
	GetIntake(ctx context.Context, sessionID string) (repository.Intake, error)
	InsertCrmRecord(ctx context.Context, sessionID, status string, at time.Time) (bool, error)
	GetCrmRecord(ctx context.Context, sessionID string) (repository.CrmRecord, error)
}

// Ensure returns the CRM record of sessionID, creating it with the default
// stage and no assignee when absent. It is safe to call repeatedly and from
// inside a transaction.
func Ensure(ctx context.Context, store EnsureStore, sessionID string, at time.Time) (repository.CrmRecord, bool, error) {
	if _, err := store.GetIntake(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.CrmRecord{}, false, apperr.NotFound("lead not found")
		}
		return repository.CrmRecord{}, false, err
	}

	created, err := store.InsertCrmRecord(ctx, sessionID, domain.DefaultStatus, at)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.CrmRecord{}, false, apperr.NotFound("lead not found")
		}
		return repository.CrmRecord{}, false, err
	}

	rec, err := store.GetCrmRecord(ctx, sessionID)
	if err != nil {
		return repository.CrmRecord{}, false, err
	}
	return rec, created, nil
}
