package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/internal/sms"
	"github.com/garagedesk/garagedesk/internal/storage"
	"github.com/segmentio/kafka-go"
)

// Dispatcher consumes published notification events, renders the message
// and calls the SMS provider. A send failure is recorded and left to the
// retry process; it never propagates back into a booking operation.
type Dispatcher struct {
	renderer *Renderer
	sender   sms.Sender
	records  *storage.NotificationRepository
	logger   *slog.Logger
}

func NewDispatcher(renderer *Renderer, sender sms.Sender, records *storage.NotificationRepository, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		renderer: renderer,
		sender:   sender,
		records:  records,
		logger:   logger,
	}
}

// Handle processes one event. It returns an error only when the audit row
// cannot be persisted, in which case the consumer lets the message retry.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	var p Payload
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		d.logger.Error("invalid notification payload", "err", err)
		return nil
	}
	kind := model.NotificationKind(p.Kind)
	if p.AppointmentID == "" || p.Phone == "" || !kind.Valid() {
		d.logger.Error("missing notification fields", "appointment_id", p.AppointmentID, "kind", p.Kind)
		return nil
	}

	body := d.renderer.Render(kind, p)

	record := storage.NotificationRecord{
		AppointmentID: p.AppointmentID,
		Kind:          kind,
		Recipient:     p.Phone,
		Body:          body,
		ProviderID:    d.sender.ProviderID(),
		Status:        "sent",
	}

	messageID, err := d.sender.Send(ctx, p.Phone, body)
	if err != nil {
		record.Status = "failed"
		record.Error = err.Error()
		d.logger.Error("sms send failed", "err", err, "appointment_id", p.AppointmentID, "kind", kind)
	} else {
		record.ProviderMessageID = messageID
	}

	if err := d.records.Insert(ctx, record); err != nil {
		d.logger.Error("failed to persist notification record", "err", err)
		return err
	}

	d.logger.Info("notification processed",
		"appointment_id", p.AppointmentID, "kind", kind, "status", record.Status)
	return nil
}
