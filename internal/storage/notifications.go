package storage

import (
	"context"

	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/libs/db"
)

// NotificationRecord is the dispatch audit row written after each send
// attempt. Retention/expiry is handled by an external cleanup job.
type NotificationRecord struct {
	AppointmentID     string
	Kind              model.NotificationKind
	Recipient         string
	Body              string
	ProviderID        string
	ProviderMessageID string
	Status            string // sent | failed
	Error             string
}

type NotificationRepository struct {
	pool *db.Pool
}

func NewNotificationRepository(pool *db.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Insert(ctx context.Context, n NotificationRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications
			(appointment_id, kind, recipient, body, provider_id, provider_message_id, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.AppointmentID, n.Kind, n.Recipient, n.Body, n.ProviderID, n.ProviderMessageID, n.Status, n.Error)
	return mapError(err)
}
