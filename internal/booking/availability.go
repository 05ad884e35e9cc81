package booking

import (
	"context"
	"time"
)

// Interval is a half-open busy window on a staff calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

// FreeSlots returns slot start times within [windowStart, windowEnd) where a
// booking of length duration would not overlap any busy interval. Slots in
// the past are skipped. All times must share a location.
func FreeSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

type SlotQuery struct {
	StaffID     string
	ServiceID   string
	WindowStart time.Time
	WindowEnd   time.Time
	Step        time.Duration
}

// FreeSlotsFor lists bookable start times for a staff member and detail
// service within a window. The slot length is the service's default duration;
// only CONFIRMED and IN_PROGRESS appointments block.
func (s *Service) FreeSlotsFor(ctx context.Context, q SlotQuery) ([]time.Time, error) {
	if q.Step <= 0 {
		q.Step = 15 * time.Minute
	}
	if _, err := s.staff.FindActive(ctx, q.StaffID); err != nil {
		return nil, err
	}
	svc, err := s.catalog.FindActive(ctx, q.ServiceID)
	if err != nil {
		return nil, err
	}

	appts, err := s.store.ListBetween(ctx, q.WindowStart, q.WindowEnd)
	if err != nil {
		return nil, err
	}
	var busy []Interval
	for _, a := range appts {
		if a.StaffID != q.StaffID || !a.Status.Blocking() {
			continue
		}
		busy = append(busy, Interval{Start: a.StartTime, End: a.EndTime})
	}

	// Committed state only: a concurrent booking can still win the window,
	// in which case the create reports the conflict.
	duration := time.Duration(svc.DefaultDuration) * time.Minute
	return FreeSlots(q.WindowStart, q.WindowEnd, duration, q.Step, busy, s.now()), nil
}
