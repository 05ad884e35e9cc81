package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/garagedesk/garagedesk/internal/booking"
	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/libs/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const serviceColumns = `id::text, name, min_duration_minutes, default_duration_minutes,
	max_duration_minutes, base_price::text, is_active, version, created_at`

type ServiceRepository struct {
	pool *db.Pool
}

func NewServiceRepository(pool *db.Pool) *ServiceRepository {
	return &ServiceRepository{pool: pool}
}

func (r *ServiceRepository) FindActive(ctx context.Context, id string) (model.DetailService, error) {
	s, err := r.scanOne(r.pool.QueryRow(ctx, `
		SELECT `+serviceColumns+`
		FROM detail_services
		WHERE id = $1 AND is_active
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DetailService{}, &booking.NotFoundError{Kind: "service", ID: id}
	}
	return s, mapError(err)
}

func (r *ServiceRepository) Create(ctx context.Context, s model.DetailService) (model.DetailService, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO detail_services
			(id, name, min_duration_minutes, default_duration_minutes, max_duration_minutes, base_price, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING version, created_at
	`, s.ID, s.Name, s.MinDurationMins, s.DefaultDuration, s.MaxDurationMins, s.BasePrice).
		Scan(&s.Version, &s.CreatedAt)
	if err != nil {
		return model.DetailService{}, mapError(err)
	}
	s.IsActive = true
	return s, nil
}

// Update compares-and-swaps on the version counter; a mismatch surfaces as a
// transient error the caller retries with a fresh read.
func (r *ServiceRepository) Update(ctx context.Context, s model.DetailService) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE detail_services
		SET name = $2,
			min_duration_minutes = $3,
			default_duration_minutes = $4,
			max_duration_minutes = $5,
			base_price = $6,
			is_active = $7,
			version = version + 1
		WHERE id = $1 AND version = $8
	`, s.ID, s.Name, s.MinDurationMins, s.DefaultDuration, s.MaxDurationMins,
		s.BasePrice, s.IsActive, s.Version)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, s.ID); err != nil {
			return err
		}
		return &booking.TransientError{Cause: fmt.Errorf("service %s version %d superseded", s.ID, s.Version)}
	}
	return nil
}

func (r *ServiceRepository) FindByID(ctx context.Context, id string) (model.DetailService, error) {
	s, err := r.scanOne(r.pool.QueryRow(ctx, `
		SELECT `+serviceColumns+`
		FROM detail_services
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DetailService{}, &booking.NotFoundError{Kind: "service", ID: id}
	}
	return s, mapError(err)
}

func (r *ServiceRepository) List(ctx context.Context, includeInactive bool) ([]model.DetailService, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM detail_services
		WHERE is_active OR $1
		ORDER BY name ASC
	`, includeInactive)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.DetailService
	for rows.Next() {
		s, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, mapError(rows.Err())
	}
	return out, nil
}

func (r *ServiceRepository) scanOne(row rowScanner) (model.DetailService, error) {
	var s model.DetailService
	err := row.Scan(&s.ID, &s.Name, &s.MinDurationMins, &s.DefaultDuration,
		&s.MaxDurationMins, &s.BasePrice, &s.IsActive, &s.Version, &s.CreatedAt)
	return s, err
}
