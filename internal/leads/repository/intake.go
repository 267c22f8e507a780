package repository

import (
	"context"
)

const intakeColumns = `
	i.session_id, i.student_name, i.parent_name, i.phone, i.email, i.city,
	i.current_grade, i.curriculum, i.target_degree, i.target_countries,
	i.lead_category, i.is_form_filled, i.is_counselling_booked, i.selected_date, i.created_at`

func (r *Repository) GetIntake(ctx context.Context, sessionID string) (Intake, error) {
	var in Intake
	err := r.db.QueryRow(ctx, `SELECT `+intakeColumns+` FROM lead_intakes i WHERE i.session_id = $1`, sessionID).Scan(
		&in.SessionID, &in.StudentName, &in.ParentName, &in.Phone, &in.Email, &in.City,
		&in.CurrentGrade, &in.Curriculum, &in.TargetDegree, &in.TargetCountries,
		&in.LeadCategory, &in.IsFormFilled, &in.IsCounsellingBooked, &in.SelectedDate, &in.CreatedAt,
	)
	if err != nil {
		return Intake{}, notFoundOr(err)
	}
	return in, nil
}

func (r *Repository) ListSessionIDsWithoutExport(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT i.session_id
		FROM lead_intakes i
		LEFT JOIN lead_exports e ON e.session_id = i.session_id
		WHERE e.session_id IS NULL
		ORDER BY i.created_at ASC, i.session_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
