package storage

import (
	"context"
	"errors"

	"github.com/garagedesk/garagedesk/internal/booking"
	"github.com/garagedesk/garagedesk/internal/customer"
	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/libs/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const customerColumns = `id::text, phone, COALESCE(first_name, ''), COALESCE(last_name, ''),
	is_active, created_at, updated_at`

type CustomerRepository struct {
	pool *db.Pool
}

func NewCustomerRepository(pool *db.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) FindByID(ctx context.Context, id string) (model.Customer, error) {
	c, err := r.scanOne(r.pool.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Customer{}, &booking.NotFoundError{Kind: "customer", ID: id}
	}
	return c, mapError(err)
}

func (r *CustomerRepository) FindByPhone(ctx context.Context, phone string) (model.Customer, bool, error) {
	c, err := r.scanOne(r.pool.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE phone = $1
	`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Customer{}, false, nil
	}
	if err != nil {
		return model.Customer{}, false, mapError(err)
	}
	return c, true, nil
}

// Insert relies on the unique index on phone; a violation is reported as
// customer.ErrDuplicatePhone so the resolver can re-fetch the winning row.
func (r *CustomerRepository) Insert(ctx context.Context, c model.Customer) (model.Customer, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (id, phone, first_name, last_name, is_active)
		VALUES ($1, $2, $3, $4, true)
		RETURNING created_at, updated_at
	`, c.ID, c.Phone, c.FirstName, c.LastName).Scan(&c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return model.Customer{}, customer.ErrDuplicatePhone
	}
	if err != nil {
		return model.Customer{}, mapError(err)
	}
	c.IsActive = true
	return c, nil
}

func (r *CustomerRepository) UpdateName(ctx context.Context, id, firstName, lastName string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE customers
		SET first_name = $2,
			last_name = $3,
			updated_at = now()
		WHERE id = $1
	`, id, firstName, lastName)
	return mapError(err)
}

// SetActive flips the active flag; customers are never hard-deleted and
// their appointment history stays intact.
func (r *CustomerRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE customers
		SET is_active = $2,
			updated_at = now()
		WHERE id = $1
	`, id, active)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return &booking.NotFoundError{Kind: "customer", ID: id}
	}
	return nil
}

func (r *CustomerRepository) List(ctx context.Context, limit int) ([]model.Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		c, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, mapError(rows.Err())
	}
	return out, nil
}

func (r *CustomerRepository) scanOne(row rowScanner) (model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.Phone, &c.FirstName, &c.LastName, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
