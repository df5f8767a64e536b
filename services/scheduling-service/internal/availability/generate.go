package availability

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

var ErrInvalidDuration = errors.New("invalid duration")

// MaxDurationMinutes caps slot length at one day.
const MaxDurationMinutes = 24 * 60

type SlotRequest struct {
	Schedule        model.Schedule
	DurationMinutes int
	// Range holds civil dates read in ViewerTimezone.
	Range          DateRange
	ViewerTimezone string
	// Bookings of other owners are ignored.
	Bookings []model.Booking
	// Now drops slots that start earlier. The zero value keeps past slots.
	Now time.Time
}

type Slot struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	ViewerDate string    `json:"viewer_date"`
}

// GenerateSlots validates req and returns the bookable slots in ascending start
// order, expressed in the viewer location. Every argument error is reported here,
// so ranging over the sequence cannot fail. The sequence may be ranged more than
// once and yields the same slots each time.
func GenerateSlots(req SlotRequest) (iter.Seq[Slot], error) {
	if req.DurationMinutes <= 0 || req.DurationMinutes > MaxDurationMinutes {
		return nil, fmt.Errorf("%w: %d minutes, want 1 to %d", ErrInvalidDuration, req.DurationMinutes, MaxDurationMinutes)
	}
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}
	ownerLoc, err := clock.LoadLocation(req.Schedule.Timezone)
	if err != nil {
		return nil, err
	}
	viewerLoc, err := clock.LoadLocation(req.ViewerTimezone)
	if err != nil {
		return nil, err
	}
	byDay, err := mergeSpans(req.Schedule.Availabilities)
	if err != nil {
		return nil, err
	}

	g := &generator{
		byDay:     byDay,
		duration:  time.Duration(req.DurationMinutes) * time.Minute,
		ownerLoc:  ownerLoc,
		viewerLoc: viewerLoc,
		busy:      busyIntervals(req.Schedule.OwnerID, req.Bookings),
		now:       req.Now,
	}
	dates := req.Range.Dates()

	return func(yield func(Slot) bool) {
		for _, date := range dates {
			for _, slot := range g.day(date) {
				if !yield(slot) {
					return
				}
			}
		}
	}, nil
}

// Collect drains seq. A positive limit caps the number of slots returned.
func Collect(seq iter.Seq[Slot], limit int) []Slot {
	var out []Slot
	for s := range seq {
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

type generator struct {
	byDay     [7][]span
	duration  time.Duration
	ownerLoc  *time.Location
	viewerLoc *time.Location
	busy      []Interval
	now       time.Time
}

// day computes the slots whose start falls on the viewer's civil date.
func (g *generator) day(date time.Time) []Slot {
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, g.viewerLoc)
	dayEnd := time.Date(y, m, d+1, 0, 0, 0, 0, g.viewerLoc)

	// Owner civil dates that overlap the viewer day; normally one or two.
	first := dayStart.In(g.ownerLoc)
	last := dayEnd.Add(-time.Nanosecond).In(g.ownerLoc)
	oy, om, od := first.Date()
	ownerDate := time.Date(oy, om, od, 12, 0, 0, 0, g.ownerLoc)
	ly, lm, ld := last.Date()
	lastDate := time.Date(ly, lm, ld, 12, 0, 0, 0, g.ownerLoc)

	var starts []time.Time
	for ; !ownerDate.After(lastDate); ownerDate = ownerDate.AddDate(0, 0, 1) {
		idx := model.FromTimeWeekday(ownerDate.Weekday()).Index()
		for _, s := range g.byDay[idx] {
			start := s.start.On(ownerDate, g.ownerLoc)
			end := s.end.On(ownerDate, g.ownerLoc)
			if start.Before(dayStart) {
				start = dayStart
			}
			if end.After(dayEnd) {
				end = dayEnd
			}
			if !end.After(start) {
				continue
			}
			starts = append(starts, AvailableSlots(start, end, g.duration, g.duration, g.busy, g.now)...)
		}
	}

	slices.SortFunc(starts, func(a, b time.Time) int { return a.Compare(b) })
	starts = slices.CompactFunc(starts, func(a, b time.Time) bool { return a.Equal(b) })

	viewerDate := date.Format(dateLayout)
	out := make([]Slot, 0, len(starts))
	for _, t := range starts {
		out = append(out, Slot{
			Start:      t.In(g.viewerLoc),
			End:        t.Add(g.duration).In(g.viewerLoc),
			ViewerDate: viewerDate,
		})
	}
	return out
}

func busyIntervals(ownerID string, bookings []model.Booking) []Interval {
	out := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		if ownerID != "" && b.OwnerID != "" && b.OwnerID != ownerID {
			continue
		}
		out = append(out, Interval{Start: b.Start, End: b.End})
	}
	slices.SortFunc(out, byStart)
	return out
}
