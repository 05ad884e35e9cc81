package reminder

import (
	"testing"
	"time"
)

func TestRemindTimes(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(26 * time.Hour)

	offsets := []time.Duration{24 * time.Hour, time.Hour, 48 * time.Hour}
	times := RemindTimes(start, offsets, now)

	// The 48h offset is already in the past and must be dropped.
	if len(times) != 2 {
		t.Fatalf("expected 2 reminder times, got %d", len(times))
	}
	if !times[0].Equal(start.Add(-24 * time.Hour)) {
		t.Fatalf("unexpected first reminder: %s", times[0])
	}
	if !times[1].Equal(start.Add(-time.Hour)) {
		t.Fatalf("unexpected second reminder: %s", times[1])
	}
}

func TestRemindTimesIgnoresNonPositiveOffsets(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(2 * time.Hour)

	times := RemindTimes(start, []time.Duration{0, -time.Hour, time.Hour}, now)
	if len(times) != 1 {
		t.Fatalf("expected 1 reminder time, got %d", len(times))
	}
}
