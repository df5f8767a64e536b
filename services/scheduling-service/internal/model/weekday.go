package model

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the persisted day-of-week enum. Values match the database enum.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists every day, Monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func ParseWeekday(s string) (Weekday, error) {
	d := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown day of week %q", s)
	}
	return d, nil
}

func (d Weekday) Valid() bool {
	return d.Index() >= 0
}

// Index is the Monday-first position (0..6), or -1 for an unknown value.
func (d Weekday) Index() int {
	for i, v := range Weekdays {
		if v == d {
			return i
		}
	}
	return -1
}

func (d Weekday) TimeWeekday() time.Weekday {
	return time.Weekday((d.Index() + 1) % 7)
}

func FromTimeWeekday(wd time.Weekday) Weekday {
	return Weekdays[(int(wd)+6)%7]
}
