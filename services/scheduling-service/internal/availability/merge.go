package availability

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

type span struct {
	start clock.WallClock
	end   clock.WallClock
}

// Merge collapses overlapping and touching windows per weekday into a minimal
// disjoint cover. Windows never merge across weekdays. The result is ordered
// Monday first, then by start time, with canonical HH:MM values.
func Merge(windows []model.AvailabilityWindow) ([]model.MergedInterval, error) {
	byDay, err := mergeSpans(windows)
	if err != nil {
		return nil, err
	}
	var out []model.MergedInterval
	for i, day := range model.Weekdays {
		for _, s := range byDay[i] {
			out = append(out, model.MergedInterval{
				DayOfWeek: day,
				StartTime: s.start.String(),
				EndTime:   s.end.String(),
			})
		}
	}
	return out, nil
}

// MergedByDay groups merged intervals by weekday, keeping their order.
func MergedByDay(merged []model.MergedInterval) map[model.Weekday][]model.MergedInterval {
	out := make(map[model.Weekday][]model.MergedInterval)
	for _, m := range merged {
		out[m.DayOfWeek] = append(out[m.DayOfWeek], m)
	}
	return out
}

// ErrInvalidWindow reports a stored window with an unknown weekday or an end
// not after its start. Field-scoped checks for edits live in Validate.
var ErrInvalidWindow = errors.New("invalid availability window")

// mergeSpans returns disjoint spans indexed Monday-first. Any bad window fails
// the whole call with a root-level error; clock.ErrInvalidWallClock is kept in
// the chain.
func mergeSpans(windows []model.AvailabilityWindow) ([7][]span, error) {
	var byDay, groups [7][]span
	for i, w := range windows {
		day := model.Weekday(strings.ToLower(string(w.DayOfWeek)))
		if !day.Valid() {
			return byDay, fmt.Errorf("%w: window %d has day %q", ErrInvalidWindow, i, w.DayOfWeek)
		}
		start, err := clock.ParseWallClock(w.StartTime)
		if err != nil {
			return byDay, fmt.Errorf("window %d start_time: %w", i, err)
		}
		end, err := clock.ParseWallClock(w.EndTime)
		if err != nil {
			return byDay, fmt.Errorf("window %d end_time: %w", i, err)
		}
		if start.Minutes() >= end.Minutes() {
			return byDay, fmt.Errorf("%w: window %d ends at %s, not after %s", ErrInvalidWindow, i, end, start)
		}
		groups[day.Index()] = append(groups[day.Index()], span{start: start, end: end})
	}

	for i, group := range groups {
		if len(group) == 0 {
			continue
		}
		slices.SortFunc(group, func(a, b span) int {
			if c := a.start.Minutes() - b.start.Minutes(); c != 0 {
				return c
			}
			return a.end.Minutes() - b.end.Minutes()
		})
		cur := group[0]
		for _, next := range group[1:] {
			if next.start.Minutes() <= cur.end.Minutes() {
				if next.end.Minutes() > cur.end.Minutes() {
					cur.end = next.end
				}
				continue
			}
			byDay[i] = append(byDay[i], cur)
			cur = next
		}
		byDay[i] = append(byDay[i], cur)
	}
	return byDay, nil
}
