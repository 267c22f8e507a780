package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const crmColumns = `session_id, lead_status, assigned_to, last_contacted, created_at, updated_at`

func scanCrm(row interface{ Scan(...any) error }) (CrmRecord, error) {
	var rec CrmRecord
	err := row.Scan(&rec.SessionID, &rec.LeadStatus, &rec.AssignedTo, &rec.LastContacted, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func (r *Repository) GetCrmRecord(ctx context.Context, sessionID string) (CrmRecord, error) {
	rec, err := scanCrm(r.db.QueryRow(ctx, `SELECT `+crmColumns+` FROM lead_crm WHERE session_id = $1`, sessionID))
	if err != nil {
		return CrmRecord{}, notFoundOr(err)
	}
	return rec, nil
}

func (r *Repository) InsertCrmRecord(ctx context.Context, sessionID, status string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO lead_crm (session_id, lead_status, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID, status, at)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return false, ErrNotFound
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, sessionID, status string, touchLastContacted bool, at time.Time) (CrmRecord, error) {
	rec, err := scanCrm(r.db.QueryRow(ctx, `
		UPDATE lead_crm
		SET lead_status = $2,
			updated_at = $3,
			last_contacted = CASE
				WHEN $4::boolean THEN GREATEST(COALESCE(last_contacted, $3), $3)
				ELSE last_contacted
			END
		WHERE session_id = $1
		RETURNING `+crmColumns, sessionID, status, at, touchLastContacted))
	if err != nil {
		return CrmRecord{}, notFoundOr(err)
	}
	return rec, nil
}

func (r *Repository) AssignIfUnassigned(ctx context.Context, sessionID string, counselorID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE lead_crm
		SET assigned_to = $2, updated_at = $3
		WHERE session_id = $1 AND assigned_to IS NULL
	`, sessionID, counselorID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) SetAssignee(ctx context.Context, sessionID string, counselorID *uuid.UUID, at time.Time) (CrmRecord, error) {
	rec, err := scanCrm(r.db.QueryRow(ctx, `
		UPDATE lead_crm
		SET assigned_to = $2, updated_at = $3
		WHERE session_id = $1
		RETURNING `+crmColumns, sessionID, counselorID, at))
	if err != nil {
		return CrmRecord{}, notFoundOr(err)
	}
	return rec, nil
}
