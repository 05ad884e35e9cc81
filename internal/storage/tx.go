package storage

import (
	"context"
	"errors"

	"github.com/garagedesk/garagedesk/internal/booking"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgTx adapts a pgx transaction to the booking.Tx unit-of-work handle,
// mapping storage-level failures at commit into domain errors.
type pgTx struct {
	inner pgx.Tx
}

func (t pgTx) Commit(ctx context.Context) error {
	return mapError(t.inner.Commit(ctx))
}

func (t pgTx) Rollback(ctx context.Context) error {
	return t.inner.Rollback(ctx)
}

// UnwrapTx recovers the pgx transaction behind a booking.Tx so collaborators
// (outbox, reminder jobs) can write into the same unit of work.
func UnwrapTx(tx booking.Tx) (pgx.Tx, bool) {
	t, ok := tx.(pgTx)
	if !ok {
		return nil, false
	}
	return t.inner, true
}

// Postgres error codes that make the whole operation worth retrying.
const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
	codeSerializationFail  = "40001"
	codeDeadlockDetected   = "40P01"
	codeLockNotAvailable   = "55P03"
)

// mapError converts retryable Postgres failures into booking.TransientError.
// An exclusion violation is included: it means a concurrent overlap slipped
// past the advisory lock (e.g. after a failover), and a retry will re-read
// the calendar and report the proper conflict.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeExclusionViolation, codeSerializationFail, codeDeadlockDetected, codeLockNotAvailable:
			return &booking.TransientError{Cause: err}
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
