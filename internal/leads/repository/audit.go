package repository

import (
	"context"
)

func (r *Repository) AppendAuditEntry(ctx context.Context, params CreateAuditEntryParams) (AuditEntry, error) {
	entry := AuditEntry{
		SessionID:   params.SessionID,
		CounselorID: params.CounselorID,
		AuthorName:  params.AuthorName,
		Kind:        params.Kind,
		Comment:     params.Comment,
		LeadStatus:  params.LeadStatus,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO lead_audit_entries (session_id, counselor_id, author_name, kind, comment, lead_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, params.SessionID, params.CounselorID, params.AuthorName, params.Kind, params.Comment, params.LeadStatus, params.CreatedAt,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return AuditEntry{}, ErrNotFound
		}
		return AuditEntry{}, err
	}
	return entry, nil
}

func (r *Repository) ListAuditEntries(ctx context.Context, sessionID string) ([]AuditEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, counselor_id, author_name, kind, comment, lead_status, created_at
		FROM lead_audit_entries
		WHERE session_id = $1
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0)
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.CounselorID, &e.AuthorName, &e.Kind, &e.Comment, &e.LeadStatus, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
