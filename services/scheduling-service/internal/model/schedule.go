package model

import "time"

// AvailabilityWindow is one recurring weekly window in the schedule owner's timezone.
type AvailabilityWindow struct {
	DayOfWeek Weekday `json:"day_of_week"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
}

type Schedule struct {
	ID             string               `json:"id"`
	OwnerID        string               `json:"owner_id"`
	Timezone       string               `json:"timezone"`
	Availabilities []AvailabilityWindow `json:"availabilities"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// MergedInterval is a maximal availability span for one weekday. Intervals for the
// same weekday never overlap or touch.
type MergedInterval struct {
	DayOfWeek Weekday `json:"day_of_week"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
}

// Event is a bookable meeting type. It shares the owner's schedule but is otherwise independent.
type Event struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Booking is a taken interval [Start, End) for an owner.
type Booking struct {
	ID      string    `json:"id"`
	OwnerID string    `json:"owner_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

func (b Booking) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && b.Start.Before(end)
}
