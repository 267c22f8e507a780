package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadconsole_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const composedLeadSelect = `
	SELECT ` + intakeColumns + `,
		c.session_id, c.lead_status, c.assigned_to, c.last_contacted, c.created_at, c.updated_at,
		e.session_id, e.export_status, e.export_date, e.exported_by, e.last_message_date, e.notes, e.created_at, e.updated_at,
		co.id, co.name, co.email, co.is_active
	FROM lead_intakes i
	LEFT JOIN lead_crm c ON c.session_id = i.session_id
	LEFT JOIN lead_exports e ON e.session_id = i.session_id
	LEFT JOIN counselors co ON co.id = c.assigned_to`

const composedLeadFrom = `
	FROM lead_intakes i
	LEFT JOIN lead_crm c ON c.session_id = i.session_id
	LEFT JOIN lead_exports e ON e.session_id = i.session_id`

func scanLead(row pgx.Row) (Lead, error) {
	var (
		lead Lead

		crmSessionID *string
		crmStatus    *string
		crmAssigned  *uuid.UUID
		crmContacted *time.Time
		crmCreated   *time.Time
		crmUpdated   *time.Time

		expSessionID *string
		expStatus    *string
		expDate      *time.Time
		expBy        *string
		expMessage   *time.Time
		expNotes     *string
		expCreated   *time.Time
		expUpdated   *time.Time

		coID     *uuid.UUID
		coName   *string
		coEmail  *string
		coActive *bool
	)

	in := &lead.Intake
	err := row.Scan(
		&in.SessionID, &in.StudentName, &in.ParentName, &in.Phone, &in.Email, &in.City,
		&in.CurrentGrade, &in.Curriculum, &in.TargetDegree, &in.TargetCountries,
		&in.LeadCategory, &in.IsFormFilled, &in.IsCounsellingBooked, &in.SelectedDate, &in.CreatedAt,
		&crmSessionID, &crmStatus, &crmAssigned, &crmContacted, &crmCreated, &crmUpdated,
		&expSessionID, &expStatus, &expDate, &expBy, &expMessage, &expNotes, &expCreated, &expUpdated,
		&coID, &coName, &coEmail, &coActive,
	)
	if err != nil {
		return Lead{}, err
	}

	if crmSessionID != nil {
		lead.CRM = &CrmRecord{
			SessionID:     *crmSessionID,
			LeadStatus:    deref(crmStatus),
			AssignedTo:    crmAssigned,
			LastContacted: crmContacted,
			CreatedAt:     derefTime(crmCreated),
			UpdatedAt:     derefTime(crmUpdated),
		}
	}
	if expSessionID != nil {
		lead.Export = &ExportRecord{
			SessionID:       *expSessionID,
			ExportStatus:    deref(expStatus),
			ExportDate:      expDate,
			ExportedBy:      expBy,
			LastMessageDate: expMessage,
			Notes:           deref(expNotes),
			CreatedAt:       derefTime(expCreated),
			UpdatedAt:       derefTime(expUpdated),
		}
	}
	if coID != nil {
		lead.Counselor = &Counselor{
			ID:       *coID,
			Name:     deref(coName),
			Email:    deref(coEmail),
			IsActive: coActive != nil && *coActive,
		}
	}
	return lead, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (r *Repository) GetLead(ctx context.Context, sessionID string) (Lead, error) {
	lead, err := scanLead(r.db.QueryRow(ctx, composedLeadSelect+` WHERE i.session_id = $1`, sessionID))
	if err != nil {
		return Lead{}, notFoundOr(err)
	}
	return lead, nil
}

// leadFilter accumulates WHERE clauses with positional arguments.
type leadFilter struct {
	clauses []string
	args    []any
}

func (f *leadFilter) add(clause string, args ...any) {
	for _, arg := range args {
		f.args = append(f.args, arg)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(f.args)), 1)
	}
	f.clauses = append(f.clauses, clause)
}

func (f *leadFilter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

func buildLeadFilter(params ListParams) leadFilter {
	var f leadFilter

	switch params.Segment {
	case domain.SegmentNewlySubmitted:
		f.add("c.session_id IS NULL")
	case domain.SegmentQualifiedNotBooked:
		f.add("NOT i.is_counselling_booked AND i.lead_category = ANY(?)", params.QualifiedCategories)
	case domain.SegmentBooked:
		f.add("i.is_counselling_booked")
	case domain.SegmentUnassigned:
		f.add("c.assigned_to IS NULL")
	}

	switch {
	case len(params.Statuses) > 0 && params.IncludeNotInCRM:
		f.add("(c.lead_status = ANY(?) OR c.session_id IS NULL)", params.Statuses)
	case len(params.Statuses) > 0:
		f.add("c.lead_status = ANY(?)", params.Statuses)
	case params.IncludeNotInCRM:
		f.add("c.session_id IS NULL")
	}

	if len(params.Categories) > 0 {
		f.add("i.lead_category = ANY(?)", params.Categories)
	}
	if params.AssignedTo != nil {
		f.add("c.assigned_to = ?", *params.AssignedTo)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		f.add(`(i.student_name ILIKE ? OR i.parent_name ILIKE ? OR i.phone ILIKE ? OR i.email ILIKE ? OR i.session_id ILIKE ?)`,
			likePattern(search), likePattern(search), likePattern(search), likePattern(search), likePattern(search))
	}
	return f
}

func likePattern(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(s) + "%"
}

func (r *Repository) ListLeads(ctx context.Context, params ListParams) ([]Lead, int, error) {
	f := buildLeadFilter(params)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+composedLeadFrom+f.where(), f.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(f.args, params.Limit, params.Offset)
	query := composedLeadSelect + f.where() +
		fmt.Sprintf(" ORDER BY i.created_at DESC, i.session_id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]Lead, 0, params.Limit)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

func (r *Repository) CountSegments(ctx context.Context, qualifiedCategories []string) (SegmentCounts, error) {
	var c SegmentCounts
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE c.session_id IS NULL),
			COUNT(*) FILTER (WHERE NOT i.is_counselling_booked AND i.lead_category = ANY($1)),
			COUNT(*) FILTER (WHERE i.is_counselling_booked),
			COUNT(*) FILTER (WHERE c.assigned_to IS NULL)
		FROM lead_intakes i
		LEFT JOIN lead_crm c ON c.session_id = i.session_id
	`, qualifiedCategories).Scan(&c.All, &c.NewlySubmitted, &c.QualifiedNotBooked, &c.Booked, &c.Unassigned)
	return c, err
}

func (r *Repository) CountFunnel(ctx context.Context, qualifiedCategories []string) (FunnelCounts, error) {
	var c FunnelCounts
	err := r.db.QueryRow(ctx, `
		WITH classified AS (
			SELECT
				is_counselling_booked AS booked,
				COALESCE(lead_category = ANY($1), false) AS qualified,
				is_form_filled AS filled
			FROM lead_intakes
		)
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE booked),
			COUNT(*) FILTER (WHERE NOT booked AND qualified),
			COUNT(*) FILTER (WHERE NOT booked AND NOT qualified AND filled),
			COUNT(*) FILTER (WHERE NOT booked AND NOT qualified AND NOT filled)
		FROM classified
	`, qualifiedCategories).Scan(&c.All, &c.Booked, &c.QualifiedNotBooked, &c.FormCompletedUnqualified, &c.Other)
	return c, err
}

func (r *Repository) CountByStage(ctx context.Context, notInCRM string) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT COALESCE(c.lead_status, $1) AS stage, COUNT(*)
		FROM lead_intakes i
		LEFT JOIN lead_crm c ON c.session_id = i.session_id
		GROUP BY stage
	`, notInCRM)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, err
		}
		counts[stage] = n
	}
	return counts, rows.Err()
}

func (r *Repository) ListExportCandidates(ctx context.Context, filter ExportCandidateFilter) ([]Lead, error) {
	var f leadFilter
	if len(filter.QualifiedCategories) > 0 {
		f.add("i.lead_category = ANY(?)", filter.QualifiedCategories)
	}
	if len(filter.ExportStatuses) > 0 {
		f.add("e.export_status = ANY(?)", filter.ExportStatuses)
	}

	query := composedLeadSelect + f.where() + " ORDER BY i.created_at DESC, i.session_id ASC"
	args := f.args
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}
