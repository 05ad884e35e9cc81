package booking

import (
	"time"

	"github.com/garagedesk/garagedesk/internal/model"
)

// Conflict identifies the existing appointment blocking a candidate window.
type Conflict struct {
	AppointmentID string
	StartTime     time.Time
}

// EarliestOverlap decides whether the half-open candidate window
// [start, end) overlaps any of the existing appointments, skipping
// excludeID so edits and reschedules never collide with themselves.
// When several overlap, the one with the earliest start wins the report,
// which keeps the result deterministic regardless of fetch order.
//
// Pure over the given snapshot; the caller is responsible for holding the
// staff calendar lock so snapshot-and-decide is atomic.
func EarliestOverlap(start, end time.Time, excludeID string, existing []model.Appointment) *Conflict {
	var found *Conflict
	for _, a := range existing {
		if a.ID == excludeID {
			continue
		}
		if !a.Status.Blocking() {
			continue
		}
		if !overlaps(start, end, a.StartTime, a.EndTime) {
			continue
		}
		if found == nil || a.StartTime.Before(found.StartTime) {
			found = &Conflict{AppointmentID: a.ID, StartTime: a.StartTime}
		}
	}
	return found
}

// overlaps reports whether half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
