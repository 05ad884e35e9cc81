package inbox

import (
	"context"

	"github.com/garagedesk/garagedesk/libs/db"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository deduplicates consumed events. Kafka delivers at-least-once;
// the inbox row drops redeliveries of already-handled events, and a failed
// handler discards its row so the redelivery is processed again.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record returns false when the event was already handled.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}

	if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
		return false, nil
	}

	return false, err
}

// Discard forgets a recorded event so its redelivery is handled again.
func (r *Repository) Discard(ctx context.Context, eventID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM inbox_events
		WHERE event_id = $1
	`, eventID)
	return err
}
