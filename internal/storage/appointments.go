package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garagedesk/garagedesk/internal/booking"
	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/libs/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `id::text, customer_id::text, COALESCE(staff_id::text, ''),
	car_brand, COALESCE(car_model, ''), COALESCE(description, ''), price::text,
	start_time, end_time, status, COALESCE(cancel_reason, ''), version, created_at, updated_at`

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

// Begin opens the unit of work for a booking operation. The lock timeout is
// local to the transaction: a writer stuck behind a busy staff calendar
// fails fast with a transient error instead of queueing indefinitely.
func (r *AppointmentRepository) Begin(ctx context.Context) (booking.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	if _, err := tx.Exec(ctx, `SET LOCAL lock_timeout = '3s'`); err != nil {
		_ = tx.Rollback(ctx)
		return nil, mapError(err)
	}
	return pgTx{inner: tx}, nil
}

// LockStaffCalendar serializes writers per staff member for the remainder of
// the transaction. The hazard is between different rows overlapping in
// time, so the lock is calendar-scoped, never row-scoped.
func (r *AppointmentRepository) LockStaffCalendar(ctx context.Context, tx booking.Tx, staffID string) error {
	inner, ok := UnwrapTx(tx)
	if !ok {
		return errForeignTx(tx)
	}
	_, err := inner.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, staffID)
	return mapError(err)
}

func (r *AppointmentRepository) FindBlocking(ctx context.Context, tx booking.Tx, staffID string, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	inner, ok := UnwrapTx(tx)
	if !ok {
		return nil, errForeignTx(tx)
	}
	rows, err := inner.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
			AND status IN ('CONFIRMED', 'IN_PROGRESS')
			AND start_time < $3
			AND end_time > $2
			AND ($4 = '' OR id::text <> $4)
		ORDER BY start_time ASC
		FOR UPDATE
	`, staffID, start, end, excludeID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *AppointmentRepository) Create(ctx context.Context, tx booking.Tx, appt *model.Appointment) error {
	inner, ok := UnwrapTx(tx)
	if !ok {
		return errForeignTx(tx)
	}
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	var staffID *string
	if appt.StaffID != "" {
		staffID = &appt.StaffID
	}
	price := appt.Price
	if price == "" {
		price = "0"
	}
	err := inner.QueryRow(ctx, `
		INSERT INTO appointments
			(id, customer_id, staff_id, car_brand, car_model, description, price, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING version, created_at, updated_at
	`, appt.ID, appt.CustomerID, staffID, appt.CarBrand, appt.CarModel, appt.Description,
		price, appt.StartTime, appt.EndTime, appt.Status).
		Scan(&appt.Version, &appt.CreatedAt, &appt.UpdatedAt)
	return mapError(err)
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx booking.Tx, id string) (model.Appointment, error) {
	inner, ok := UnwrapTx(tx)
	if !ok {
		return model.Appointment{}, errForeignTx(tx)
	}
	row := inner.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, &booking.NotFoundError{Kind: "appointment", ID: id}
	}
	if err != nil {
		return model.Appointment{}, mapError(err)
	}
	return appt, nil
}

// Update writes the row back with a compare-and-swap on version; a mismatch
// means a concurrent writer got there first and the operation should be
// retried from a fresh read.
func (r *AppointmentRepository) Update(ctx context.Context, tx booking.Tx, appt *model.Appointment) error {
	inner, ok := UnwrapTx(tx)
	if !ok {
		return errForeignTx(tx)
	}
	var staffID *string
	if appt.StaffID != "" {
		staffID = &appt.StaffID
	}
	tag, err := inner.Exec(ctx, `
		UPDATE appointments
		SET staff_id = $2,
			price = $3,
			start_time = $4,
			end_time = $5,
			status = $6,
			cancel_reason = $7,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $8
	`, appt.ID, staffID, appt.Price, appt.StartTime, appt.EndTime, appt.Status,
		appt.CancelReason, appt.Version)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return &booking.TransientError{Cause: fmt.Errorf("appointment %s version %d superseded", appt.ID, appt.Version)}
	}
	appt.Version++
	return nil
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, &booking.NotFoundError{Kind: "appointment", ID: id}
	}
	if err != nil {
		return model.Appointment{}, mapError(err)
	}
	return appt, nil
}

func (r *AppointmentRepository) ListBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_time < $2 AND end_time > $1
		ORDER BY start_time ASC
	`, from, to)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.CustomerID,
		&appt.StaffID,
		&appt.CarBrand,
		&appt.CarModel,
		&appt.Description,
		&appt.Price,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&appt.CancelReason,
		&appt.Version,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	return appt, err
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, mapError(rows.Err())
	}
	return appts, nil
}

func errForeignTx(tx booking.Tx) error {
	return fmt.Errorf("storage: unexpected transaction type %T", tx)
}
