package availability

import (
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// MaxRangeDays caps how many viewer dates one slot query may cover.
const MaxRangeDays = 62

var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive range of civil dates. Only the year, month and day of
// Start and End are read.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func ParseDateRange(from, to string) (DateRange, error) {
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: from %q is not YYYY-MM-DD", ErrInvalidRange, from)
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: to %q is not YYYY-MM-DD", ErrInvalidRange, to)
	}
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	days := r.Days()
	if days < 1 {
		return fmt.Errorf("%w: end precedes start", ErrInvalidRange)
	}
	if days > MaxRangeDays {
		return fmt.Errorf("%w: spans %d days, at most %d allowed", ErrInvalidRange, days, MaxRangeDays)
	}
	return nil
}

// Days is the number of dates in the range, counting both ends.
func (r DateRange) Days() int {
	s := civil(r.Start)
	e := civil(r.End)
	return int(e.Sub(s).Hours()/24) + 1
}

// Dates returns each date of the range as midnight UTC.
func (r DateRange) Dates() []time.Time {
	n := r.Days()
	if n < 1 {
		return nil
	}
	out := make([]time.Time, 0, n)
	s := civil(r.Start)
	for i := 0; i < n; i++ {
		out = append(out, s.AddDate(0, 0, i))
	}
	return out
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
