package repository

import (
	"context"
	"time"

	"leadconsole_backend/internal/leads/domain"
)

func (r *Repository) GetExportRecords(ctx context.Context, sessionIDs []string) (map[string]ExportRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT session_id, export_status, export_date, exported_by, last_message_date, notes, created_at, updated_at
		FROM lead_exports
		WHERE session_id = ANY($1)
	`, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[string]ExportRecord, len(sessionIDs))
	for rows.Next() {
		var rec ExportRecord
		if err := rows.Scan(
			&rec.SessionID, &rec.ExportStatus, &rec.ExportDate, &rec.ExportedBy,
			&rec.LastMessageDate, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records[rec.SessionID] = rec
	}
	return records, rows.Err()
}

func (r *Repository) CreateExportRecord(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO lead_exports (session_id, export_status, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
	`, sessionID, domain.ExportStatusNotExported, at)
	switch pgErrorCode(err) {
	case "":
		return err
	case pgUniqueViolation:
		return ErrDuplicate
	case pgForeignKeyViolation:
		return ErrNotFound
	default:
		return err
	}
}

func (r *Repository) TransitionExports(ctx context.Context, params ExportTransitionParams) (int, error) {
	notes := make([]string, len(params.SessionIDs))
	for i, id := range params.SessionIDs {
		if params.NoteFor != nil {
			notes[i] = params.NoteFor(id)
		}
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE lead_exports e
		SET export_status = $2,
			updated_at = $3,
			export_date = CASE WHEN $4::boolean THEN $3 ELSE e.export_date END,
			exported_by = CASE WHEN $4::boolean THEN $5 ELSE e.exported_by END,
			last_message_date = CASE WHEN $6::boolean THEN $3 ELSE e.last_message_date END,
			notes = CASE
				WHEN v.note = '' THEN e.notes
				WHEN e.notes = '' THEN v.note
				ELSE e.notes || E'\n' || v.note
			END
		FROM unnest($7::text[], $8::text[]) AS v(session_id, note)
		WHERE e.session_id = v.session_id AND e.export_status = $1
	`, params.From, params.To, params.At, params.SetExportDate, params.ExportedBy, params.SetMessageDate,
		params.SessionIDs, notes)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
