package storage

import (
	"context"
	"errors"

	"github.com/garagedesk/garagedesk/internal/booking"
	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/libs/db"
	"github.com/jackc/pgx/v5"
)

// StaffRepository resolves assignable staff from the users table. Only
// active STAFF/ADMIN users qualify; anyone else is reported as not found,
// which is checked before any conflict check runs.
type StaffRepository struct {
	pool *db.Pool
}

func NewStaffRepository(pool *db.Pool) *StaffRepository {
	return &StaffRepository{pool: pool}
}

func (r *StaffRepository) FindActive(ctx context.Context, id string) (model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, username, role, is_active
		FROM users
		WHERE id = $1
			AND is_active
			AND role IN ('STAFF', 'ADMIN')
	`, id).Scan(&s.ID, &s.Username, &s.Role, &s.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Staff{}, &booking.NotFoundError{Kind: "staff", ID: id}
	}
	if err != nil {
		return model.Staff{}, mapError(err)
	}
	return s, nil
}

func (r *StaffRepository) List(ctx context.Context) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, username, role, is_active
		FROM users
		WHERE role IN ('STAFF', 'ADMIN')
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.Username, &s.Role, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, mapError(rows.Err())
	}
	return out, nil
}
