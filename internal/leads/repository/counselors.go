package repository

import (
	"context"

	"github.com/google/uuid"
)

func (r *Repository) GetCounselor(ctx context.Context, id uuid.UUID) (Counselor, error) {
	var c Counselor
	err := r.db.QueryRow(ctx, `SELECT id, name, email, is_active FROM counselors WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.IsActive)
	if err != nil {
		return Counselor{}, notFoundOr(err)
	}
	return c, nil
}

func (r *Repository) GetCounselorByEmail(ctx context.Context, email string) (Counselor, error) {
	var c Counselor
	err := r.db.QueryRow(ctx, `SELECT id, name, email, is_active FROM counselors WHERE lower(email) = lower($1)`, email).
		Scan(&c.ID, &c.Name, &c.Email, &c.IsActive)
	if err != nil {
		return Counselor{}, notFoundOr(err)
	}
	return c, nil
}
