package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeInbox struct {
	recorded map[string]bool
	discards []string
}

func newFakeInbox() *fakeInbox {
	return &fakeInbox{recorded: map[string]bool{}}
}

func (f *fakeInbox) Record(_ context.Context, eventID, _ string) (bool, error) {
	if f.recorded[eventID] {
		return false, nil
	}
	f.recorded[eventID] = true
	return true, nil
}

func (f *fakeInbox) Discard(_ context.Context, eventID string) error {
	delete(f.recorded, eventID)
	f.discards = append(f.discards, eventID)
	return nil
}

func testMessage(eventID string) kafka.Message {
	return kafka.Message{
		Topic: "notification.requested",
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte("notification.requested")},
		},
	}
}

func testConsumer(inbox Inbox, handler Handler) *Consumer {
	return &Consumer{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:   inbox,
		handler: handler,
	}
}

func TestDuplicateDeliveryHandledOnce(t *testing.T) {
	inbox := newFakeInbox()
	calls := 0
	c := testConsumer(inbox, func(context.Context, kafka.Message) error {
		calls++
		return nil
	})

	msg := testMessage("evt-1")
	if err := c.handleMessage(context.Background(), msg); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := c.handleMessage(context.Background(), msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected exactly one handler call, got %d", calls)
	}
	if len(inbox.discards) != 0 {
		t.Fatalf("successful handling must keep the dedupe row, got discards %v", inbox.discards)
	}
}

func TestHandlerFailureRetriedOnRedelivery(t *testing.T) {
	inbox := newFakeInbox()
	calls := 0
	c := testConsumer(inbox, func(context.Context, kafka.Message) error {
		calls++
		if calls == 1 {
			return errors.New("audit insert failed")
		}
		return nil
	})

	msg := testMessage("evt-1")
	if err := c.handleMessage(context.Background(), msg); err == nil {
		t.Fatal("expected the first delivery to fail")
	}
	if len(inbox.discards) != 1 || inbox.discards[0] != "evt-1" {
		t.Fatalf("failed handling must discard the dedupe row, got %v", inbox.discards)
	}

	if err := c.handleMessage(context.Background(), msg); err != nil {
		t.Fatalf("redelivery after failure: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected the redelivery to be handled, got %d calls", calls)
	}

	// A third delivery after the successful retry is a duplicate again.
	if err := c.handleMessage(context.Background(), msg); err != nil {
		t.Fatalf("post-success redelivery: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected duplicate to be dropped, got %d calls", calls)
	}
}
