package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/garagedesk/garagedesk/internal/booking"
	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/internal/outbox"
	"github.com/garagedesk/garagedesk/internal/storage"
)

// Scheduler implements booking.Notifier over the transactional outbox: the
// event rides the booking transaction and is published only after it is
// durable. Exactly one outbox row is written per call, so a committed
// transition produces exactly one notification event.
type Scheduler struct {
	repo   *outbox.Repository
	logger *slog.Logger
}

func NewScheduler(repo *outbox.Repository, logger *slog.Logger) *Scheduler {
	return &Scheduler{repo: repo, logger: logger}
}

func (s *Scheduler) Schedule(ctx context.Context, tx booking.Tx, snap booking.Snapshot, kind model.NotificationKind) error {
	if snap.CustomerPhone == "" {
		// Malformed numbers are tolerated upstream; nothing to send to.
		s.logger.Warn("notification skipped: customer has no phone",
			"appointment_id", snap.ID, "kind", kind)
		return nil
	}

	payload, err := json.Marshal(PayloadFromSnapshot(snap, kind))
	if err != nil {
		return err
	}
	evt := outbox.Event{
		AggregateType: "appointment",
		AggregateID:   snap.ID,
		EventType:     outbox.EventNotificationRequested,
		Payload:       payload,
	}

	if tx == nil {
		// No transaction in flight (background job): dispatch immediately.
		return s.repo.InsertDirect(ctx, evt)
	}
	inner, ok := storage.UnwrapTx(tx)
	if !ok {
		return fmt.Errorf("notify: unexpected transaction type %T", tx)
	}
	return s.repo.Insert(ctx, inner, evt)
}
