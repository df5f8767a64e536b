package availability

import (
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

// Issue is a field-scoped problem attached to one window by its input index.
type Issue struct {
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		i := e.Issues[0]
		return fmt.Sprintf("validation failed: row %d %s: %s", i.Index, i.Field, i.Reason)
	}
	return fmt.Sprintf("validation failed: %d issues", len(e.Issues))
}

func (e *ValidationError) Add(index int, field, reason string) {
	e.Issues = append(e.Issues, Issue{Index: index, Field: field, Reason: reason})
}

// Err returns e when it holds issues and nil otherwise.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// Validate checks each window on its own. Overlapping windows are legal input.
func Validate(windows []model.AvailabilityWindow) error {
	verr := &ValidationError{}
	for i, w := range windows {
		if !model.Weekday(strings.ToLower(string(w.DayOfWeek))).Valid() {
			verr.Add(i, "day_of_week", "unknown day of week")
		}
		start, serr := clock.ParseWallClock(w.StartTime)
		if serr != nil {
			verr.Add(i, "start_time", "must be a 24-hour HH:MM time")
		}
		end, eerr := clock.ParseWallClock(w.EndTime)
		if eerr != nil {
			verr.Add(i, "end_time", "must be a 24-hour HH:MM time")
		}
		if serr == nil && eerr == nil && start.Minutes() >= end.Minutes() {
			verr.Add(i, "end_time", "end time must be after start time")
		}
	}
	return verr.Err()
}
