package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garagedesk/garagedesk/internal/booking"
	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/internal/notify"
	"github.com/garagedesk/garagedesk/internal/storage"
)

// Queue implements booking.ReminderQueue: it plants reminder jobs inside
// the booking transaction so reminders exist iff the booking committed.
type Queue struct {
	repo    *Repository
	offsets []time.Duration
	now     func() time.Time
}

func NewQueue(repo *Repository, offsets []time.Duration) *Queue {
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour}
	}
	return &Queue{repo: repo, offsets: offsets, now: time.Now}
}

func (q *Queue) Enqueue(ctx context.Context, tx booking.Tx, snap booking.Snapshot) error {
	inner, ok := storage.UnwrapTx(tx)
	if !ok {
		return fmt.Errorf("reminder: unexpected transaction type %T", tx)
	}
	if snap.CustomerPhone == "" {
		return nil
	}

	payload, err := json.Marshal(notify.PayloadFromSnapshot(snap, model.NotifyReminder))
	if err != nil {
		return err
	}

	now := q.now()
	for _, remindAt := range RemindTimes(snap.StartTime, q.offsets, now) {
		job := Job{
			IdempotencyKey: snap.ID + "@" + remindAt.UTC().Format(time.RFC3339),
			AppointmentID:  snap.ID,
			Recipient:      snap.CustomerPhone,
			RemindAt:       remindAt,
			Payload:        payload,
		}
		if err := q.repo.Insert(ctx, inner, job); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) CancelPending(ctx context.Context, tx booking.Tx, appointmentID string) error {
	inner, ok := storage.UnwrapTx(tx)
	if !ok {
		return fmt.Errorf("reminder: unexpected transaction type %T", tx)
	}
	return q.repo.CancelPending(ctx, inner, appointmentID)
}

// RemindTimes returns the reminder instants for a start time, dropping
// offsets that already lie in the past.
func RemindTimes(start time.Time, offsets []time.Duration, now time.Time) []time.Time {
	var out []time.Time
	for _, offset := range offsets {
		if offset <= 0 {
			continue
		}
		at := start.Add(-offset)
		if at.Before(now) {
			continue
		}
		out = append(out, at)
	}
	return out
}
