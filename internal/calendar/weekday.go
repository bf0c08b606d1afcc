package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday numbers days of the week Monday=0 .. Sunday=6, which is how
// availability rules and recurring schedules store them.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayOf converts the UTC calendar day of t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.UTC().Weekday()) + 6) % 7)
}

func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// ParseWeekday accepts "0".."6" or an English day name (case-insensitive).
func ParseWeekday(s string) (Weekday, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		w := Weekday(n)
		if !w.Valid() {
			return 0, fmt.Errorf("day_of_week must be between 0 (Monday) and 6 (Sunday), got %d", n)
		}
		return w, nil
	}
	for i, name := range weekdayNames {
		if strings.EqualFold(name, s) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("invalid day_of_week %q", s)
}

// ParseClock reads a time of day written as "HH:MM" or "HH:MM:SS". "24:00"
// is accepted as the end of the day.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" || s == "24:00:00" {
		return 24 * time.Hour, nil
	}
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = time.TimeOnly
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return ClockOf(t), nil
}

// FormatClock renders an offset from midnight as "HH:MM".
func FormatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

// DaysUntil returns how many days forward from w the next target falls (0..6).
func (w Weekday) DaysUntil(target Weekday) int {
	return ((int(target)-int(w))%7 + 7) % 7
}

// DateOf truncates t to midnight UTC of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClockOf returns the offset of t from midnight UTC.
func ClockOf(t time.Time) time.Duration {
	t = t.UTC()
	return t.Sub(DateOf(t))
}

// At places a time-of-day offset onto a calendar date.
func At(date time.Time, clock time.Duration) time.Time {
	return DateOf(date).Add(clock)
}

// WindowOn builds the instant interval for a [start, end) time-of-day window on date.
func WindowOn(date time.Time, start, end time.Duration) TimeRange {
	return TimeRange{Start: At(date, start), End: At(date, end)}
}
