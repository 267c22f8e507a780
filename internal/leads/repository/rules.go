package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const ruleColumns = `id, name, priority, trigger_category, trigger_status, assigned_counselor,
	start_date, end_date, is_active, created_by, created_at`

func scanRule(row interface{ Scan(...any) error }) (Rule, error) {
	var rule Rule
	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Priority, &rule.TriggerCategory, &rule.TriggerStatus, &rule.AssignedCounselor,
		&rule.StartDate, &rule.EndDate, &rule.IsActive, &rule.CreatedBy, &rule.CreatedAt,
	)
	return rule, err
}

func (r *Repository) queryRules(ctx context.Context, query string, args ...any) ([]Rule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *Repository) ListEffectiveRules(ctx context.Context, day time.Time) ([]Rule, error) {
	return r.queryRules(ctx, `
		SELECT `+ruleColumns+`
		FROM assignment_rules
		WHERE is_active
			AND start_date <= $1::date
			AND (end_date IS NULL OR end_date >= $1::date)
		ORDER BY priority ASC, created_at DESC
	`, day)
}

func (r *Repository) ListRules(ctx context.Context) ([]Rule, error) {
	return r.queryRules(ctx, `
		SELECT `+ruleColumns+`
		FROM assignment_rules
		ORDER BY priority ASC, created_at DESC
	`)
}

func (r *Repository) GetRule(ctx context.Context, id uuid.UUID) (Rule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx, `SELECT `+ruleColumns+` FROM assignment_rules WHERE id = $1`, id))
	if err != nil {
		return Rule{}, notFoundOr(err)
	}
	return rule, nil
}

func (r *Repository) CreateRule(ctx context.Context, params CreateRuleParams) (Rule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx, `
		INSERT INTO assignment_rules
			(name, priority, trigger_category, trigger_status, assigned_counselor, start_date, end_date, is_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7::date, $8, $9, $10)
		RETURNING `+ruleColumns,
		params.Name, params.Priority, params.TriggerCategory, params.TriggerStatus, params.AssignedCounselor,
		params.StartDate, params.EndDate, params.IsActive, params.CreatedBy, params.CreatedAt,
	))
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return Rule{}, ErrNotFound
		}
		return Rule{}, err
	}
	return rule, nil
}

func (r *Repository) SetRuleActive(ctx context.Context, id uuid.UUID, active bool) (Rule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx, `
		UPDATE assignment_rules SET is_active = $2 WHERE id = $1
		RETURNING `+ruleColumns, id, active))
	if err != nil {
		return Rule{}, notFoundOr(err)
	}
	return rule, nil
}
