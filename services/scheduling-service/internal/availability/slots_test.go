package availability

import (
	"testing"
	"time"
)

func TestAvailableSlots_Basic(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, loc)
	windowStart := time.Date(2026, 1, 28, 9, 0, 0, 0, loc)
	windowEnd := time.Date(2026, 1, 28, 10, 0, 0, 0, loc)

	busy := []Interval{
		{Start: day.Add(9*time.Hour + 15*time.Minute), End: day.Add(9*time.Hour + 45*time.Minute)},
	}

	slots := AvailableSlots(windowStart, windowEnd, 15*time.Minute, 15*time.Minute, busy, day)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Format(time.RFC3339))
	}
	if !slots[1].Equal(day.Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("expected second slot 09:45, got %s", slots[1].Format(time.RFC3339))
	}
}

func TestAvailableSlots_SkipsPast(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	now := day.Add(9*time.Hour + 31*time.Minute)
	slots := AvailableSlots(day.Add(9*time.Hour), day.Add(10*time.Hour), 15*time.Minute, 15*time.Minute, nil, now)
	// 09:00, 09:15, 09:30 start before now.
	if len(slots) != 1 || !slots[0].Equal(day.Add(9*time.Hour+45*time.Minute)) {
		t.Fatalf("expected only 09:45, got %v", slots)
	}
}

func TestAvailableSlots_TailShorterThanDuration(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	slots := AvailableSlots(day.Add(9*time.Hour), day.Add(10*time.Hour+20*time.Minute), 30*time.Minute, 30*time.Minute, nil, time.Time{})
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if got := AvailableSlots(day, day.Add(10*time.Minute), 30*time.Minute, 30*time.Minute, nil, time.Time{}); got != nil {
		t.Fatalf("expected no slots for a short window, got %v", got)
	}
}

func TestAvailableSlots_UnsortedAndNestedBusy(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	busy := []Interval{
		{Start: at(11, 0), End: at(11, 30)},
		{Start: at(9, 0), End: at(10, 30)}, // long block listed out of order
		{Start: at(9, 15), End: at(9, 30)}, // nested inside the long one
	}

	slots := AvailableSlots(at(9, 0), at(12, 0), 30*time.Minute, 30*time.Minute, busy, time.Time{})
	want := []time.Time{at(10, 30), at(11, 30)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %v", len(want), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i].Format("15:04"), slots[i].Format("15:04"))
		}
	}
	if !busy[0].Start.Equal(at(11, 0)) {
		t.Fatalf("caller's busy slice must not be reordered")
	}
}

func TestAvailableSlots_NowOnStrideIsKept(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	now := day.Add(9*time.Hour + 30*time.Minute)
	slots := AvailableSlots(day.Add(9*time.Hour), day.Add(10*time.Hour), 30*time.Minute, 30*time.Minute, nil, now)
	if len(slots) != 1 || !slots[0].Equal(now) {
		t.Fatalf("expected only 09:30, got %v", slots)
	}
}
