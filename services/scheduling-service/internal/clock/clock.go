// Package clock converts recurring wall-clock times into instants in IANA timezones.
package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

var (
	ErrInvalidTimezone  = errors.New("invalid timezone")
	ErrInvalidWallClock = errors.New("invalid wall clock time")
)

// WallClock is a civil time of day with minute precision.
type WallClock struct {
	Hour   int
	Minute int
}

// ParseWallClock accepts 24-hour "H:MM" or "HH:MM" between 00:00 and 23:59.
func ParseWallClock(s string) (WallClock, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 {
		return WallClock{}, fmt.Errorf("%w: %q", ErrInvalidWallClock, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 || !isDigits(h) {
		return WallClock{}, fmt.Errorf("%w: %q", ErrInvalidWallClock, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || !isDigits(m) {
		return WallClock{}, fmt.Errorf("%w: %q", ErrInvalidWallClock, s)
	}
	return WallClock{Hour: hour, Minute: minute}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String renders the canonical zero-padded form, e.g. "09:05".
func (w WallClock) String() string {
	return fmt.Sprintf("%02d:%02d", w.Hour, w.Minute)
}

// Minutes is the number of minutes since midnight.
func (w WallClock) Minutes() int {
	return w.Hour*60 + w.Minute
}

// On resolves w on the civil date of date (read in loc) to an instant in loc.
// A time inside a spring-forward gap moves forward by the gap length, so 02:30 on
// a 02:00->03:00 day becomes 03:30.
func (w WallClock) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.In(loc).Date()
	return wallTime(y, m, d, w, loc)
}

func wallTime(y int, m time.Month, d int, w WallClock, loc *time.Location) time.Time {
	t := time.Date(y, m, d, w.Hour, w.Minute, 0, 0, loc)
	if t.Hour() == w.Hour && t.Minute() == w.Minute {
		return t
	}
	_, before := t.Add(-12 * time.Hour).Zone()
	naive := time.Date(y, m, d, w.Hour, w.Minute, 0, 0, time.UTC)
	return naive.Add(-time.Duration(before) * time.Second).In(loc)
}

// ToFloatHours returns H + M/60. It is meant for ordering only.
func ToFloatHours(wallClock string) (float64, error) {
	w, err := ParseWallClock(wallClock)
	if err != nil {
		return 0, err
	}
	return float64(w.Hour) + float64(w.Minute)/60, nil
}

// LoadLocation resolves an IANA name. Unlike time.LoadLocation, "" is rejected
// rather than treated as UTC.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return loc, nil
}

// TimezoneOffsetLabel renders the UTC offset of tz in effect at ref, e.g. "UTC-05:00".
func TimezoneOffsetLabel(tz string, ref time.Time) (string, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return "", err
	}
	_, offset := ref.In(loc).Zone()
	return OffsetLabel(offset), nil
}

// OffsetLabel formats an offset in seconds east of UTC.
func OffsetLabel(offsetSeconds int) string {
	sign := '+'
	if offsetSeconds < 0 {
		sign = '-'
		offsetSeconds = -offsetSeconds
	}
	minutes := offsetSeconds / 60
	return fmt.Sprintf("UTC%c%02d:%02d", sign, minutes/60, minutes%60)
}

// WeekStart returns midnight of the Monday that begins the week containing the
// civil date of anchor in loc.
func WeekStart(anchor time.Time, loc *time.Location) time.Time {
	y, m, d := anchor.In(loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	back := (int(day.Weekday()) + 6) % 7
	return time.Date(y, m, d-back, 0, 0, 0, 0, loc)
}

// LocalWallClockToInstant resolves the recurring (day, wallClock) in tz for the
// Monday-first week that contains weekAnchor.
func LocalWallClockToInstant(day time.Weekday, wallClock, tz string, weekAnchor time.Time) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	w, err := ParseWallClock(wallClock)
	if err != nil {
		return time.Time{}, err
	}
	monday := WeekStart(weekAnchor, loc)
	offset := (int(day) + 6) % 7
	y, m, d := monday.AddDate(0, 0, offset).Date()
	return wallTime(y, m, d, w, loc), nil
}
