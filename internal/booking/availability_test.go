package booking

import (
	"context"
	"testing"
	"time"

	"github.com/garagedesk/garagedesk/internal/model"
)

func TestFreeSlotsSkipsBusyAndPast(t *testing.T) {
	windowStart := at(9, 0)
	windowEnd := at(12, 0)
	busy := []Interval{{Start: at(10, 0), End: at(11, 0)}}
	now := at(9, 30)

	slots := FreeSlots(windowStart, windowEnd, time.Hour, 30*time.Minute, busy, now)

	// 09:00 is past, 09:30 collides with [10:00,11:00), 11:00 fits exactly.
	want := []time.Time{at(11, 0)}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("expected %v, got %v", want, slots)
		}
	}
}

func TestFreeSlotsBackToBack(t *testing.T) {
	busy := []Interval{{Start: at(10, 0), End: at(11, 0)}}

	slots := FreeSlots(at(9, 0), at(12, 0), time.Hour, time.Hour, busy, at(8, 0))
	if len(slots) != 2 || !slots[0].Equal(at(9, 0)) || !slots[1].Equal(at(11, 0)) {
		t.Fatalf("back-to-back slots must be offered, got %v", slots)
	}
}

func TestFreeSlotsDegenerateInputs(t *testing.T) {
	if s := FreeSlots(at(9, 0), at(9, 0), time.Hour, time.Hour, nil, at(8, 0)); s != nil {
		t.Fatalf("empty window must yield nil, got %v", s)
	}
	if s := FreeSlots(at(9, 0), at(9, 30), time.Hour, time.Hour, nil, at(8, 0)); s != nil {
		t.Fatalf("window shorter than duration must yield nil, got %v", s)
	}
	if s := FreeSlots(at(9, 0), at(12, 0), 0, time.Hour, nil, at(8, 0)); s != nil {
		t.Fatalf("zero duration must yield nil, got %v", s)
	}
}

func TestFreeSlotsForFiltersStaff(t *testing.T) {
	env := seedEnv()
	seedAppointment(env, "appt-A", model.StatusConfirmed, "staff-1", at(10, 0), at(11, 0))
	svc := newTestService(env)

	slots, err := svc.FreeSlotsFor(context.Background(), SlotQuery{
		StaffID:     "staff-1",
		ServiceID:   "svc-1",
		WindowStart: at(9, 0),
		WindowEnd:   at(12, 0),
		Step:        time.Hour,
	})
	if err != nil {
		t.Fatalf("FreeSlotsFor: %v", err)
	}
	if len(slots) != 2 || !slots[0].Equal(at(9, 0)) || !slots[1].Equal(at(11, 0)) {
		t.Fatalf("unexpected slots %v", slots)
	}
}
