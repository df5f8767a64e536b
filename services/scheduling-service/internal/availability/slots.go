package availability

import (
	"slices"
	"time"
)

// Interval is an absolute half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && i.Start.Before(end)
}

func byStart(a, b Interval) int { return a.Start.Compare(b.Start) }

// AvailableSlots strides through [windowStart, windowEnd) by step and returns
// every start whose [t, t+duration) fits the window, is not before now, and
// misses all busy intervals. A tail shorter than duration yields nothing.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	t := windowStart
	if now.After(t) {
		// First stride point at or after now.
		t = t.Add((now.Sub(t) + step - 1) / step * step)
	}
	if t.Add(duration).After(windowEnd) {
		return nil
	}
	if !slices.IsSortedFunc(busy, byStart) {
		busy = slices.Clone(busy)
		slices.SortFunc(busy, byStart)
	}

	var slots []time.Time
	next := 0
	for ; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		for next < len(busy) && !busy[next].End.After(t) {
			next++
		}
		if !overlapsAny(t, t.Add(duration), busy[next:]) {
			slots = append(slots, t)
		}
	}
	return slots
}

// overlapsAny expects busy sorted by start.
func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if !b.Start.Before(end) {
			return false
		}
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
