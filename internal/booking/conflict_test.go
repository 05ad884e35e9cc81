package booking

import (
	"testing"
	"time"

	"github.com/garagedesk/garagedesk/internal/model"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 9, 10, hour, min, 0, 0, time.UTC)
}

func confirmed(id string, start, end time.Time) model.Appointment {
	return model.Appointment{ID: id, Status: model.StatusConfirmed, StartTime: start, EndTime: end}
}

func TestEarliestOverlapPicksEarliestStart(t *testing.T) {
	existing := []model.Appointment{
		confirmed("b", at(10, 30), at(11, 30)),
		confirmed("a", at(10, 0), at(11, 0)),
	}

	c := EarliestOverlap(at(10, 45), at(11, 45), "", existing)
	if c == nil {
		t.Fatal("expected a conflict")
	}
	if c.AppointmentID != "a" {
		t.Fatalf("expected earliest conflict a, got %s", c.AppointmentID)
	}
	if !c.StartTime.Equal(at(10, 0)) {
		t.Fatalf("unexpected conflict start %s", c.StartTime)
	}
}

func TestEarliestOverlapHalfOpenBoundaries(t *testing.T) {
	existing := []model.Appointment{confirmed("a", at(10, 0), at(11, 0))}

	// Back to back windows share an instant but do not overlap.
	if c := EarliestOverlap(at(11, 0), at(12, 0), "", existing); c != nil {
		t.Fatalf("window starting at previous end must not conflict, got %s", c.AppointmentID)
	}
	if c := EarliestOverlap(at(9, 0), at(10, 0), "", existing); c != nil {
		t.Fatalf("window ending at next start must not conflict, got %s", c.AppointmentID)
	}
	if c := EarliestOverlap(at(10, 59), at(12, 0), "", existing); c == nil {
		t.Fatal("one minute of overlap must conflict")
	}
}

func TestEarliestOverlapExcludesSelf(t *testing.T) {
	existing := []model.Appointment{confirmed("a", at(10, 0), at(11, 0))}

	if c := EarliestOverlap(at(10, 15), at(11, 15), "a", existing); c != nil {
		t.Fatalf("own window must be excluded, got %s", c.AppointmentID)
	}
}

func TestEarliestOverlapIgnoresNonBlocking(t *testing.T) {
	existing := []model.Appointment{
		{ID: "a", Status: model.StatusCanceled, StartTime: at(10, 0), EndTime: at(11, 0)},
		{ID: "b", Status: model.StatusCompleted, StartTime: at(10, 0), EndTime: at(11, 0)},
		{ID: "c", Status: model.StatusRequested, StartTime: at(10, 0), EndTime: at(11, 0)},
	}

	if c := EarliestOverlap(at(10, 0), at(11, 0), "", existing); c != nil {
		t.Fatalf("only CONFIRMED and IN_PROGRESS block, got %s", c.AppointmentID)
	}

	existing = append(existing, model.Appointment{
		ID: "d", Status: model.StatusInProgress, StartTime: at(10, 0), EndTime: at(11, 0),
	})
	if c := EarliestOverlap(at(10, 0), at(11, 0), "", existing); c == nil || c.AppointmentID != "d" {
		t.Fatalf("in-progress appointment must block, got %v", c)
	}
}
