package calendar

import (
	"errors"
	"time"
)

var (
	ErrEmptyWeekdays   = errors.New("recurring rule: at least one weekday is required")
	ErrSeriesEndBefore = errors.New("recurring rule: end date is before the first occurrence")
)

// WeekdaySeries describes a series whose first occurrence is First and which
// repeats on every date in Weekdays up to and including Until.
type WeekdaySeries struct {
	First    TimeRange
	Weekdays []Weekday
	Until    time.Time
}

// ExpandWeekdaySeries returns the occurrences after First. Each one keeps the
// first occurrence's time of day and duration. First itself is not included.
func ExpandWeekdaySeries(s WeekdaySeries) ([]TimeRange, error) {
	if !s.First.End.After(s.First.Start) {
		return nil, ErrInvalidTimeRange
	}
	if len(s.Weekdays) == 0 {
		return nil, ErrEmptyWeekdays
	}
	for _, w := range s.Weekdays {
		if !w.Valid() {
			return nil, ErrEmptyWeekdays
		}
	}
	until := DateOf(s.Until)
	firstDate := DateOf(s.First.Start)
	if until.Before(firstDate) {
		return nil, ErrSeriesEndBefore
	}

	clock := ClockOf(s.First.Start)
	duration := s.First.Duration()

	var result []TimeRange
	for day := firstDate.AddDate(0, 0, 1); !day.After(until); day = day.AddDate(0, 0, 1) {
		if !containsWeekday(s.Weekdays, WeekdayOf(day)) {
			continue
		}
		start := At(day, clock)
		result = append(result, TimeRange{Start: start, End: start.Add(duration)})
	}
	return result, nil
}

// WeeklyOccurrences lists the [start, end) windows of a weekly slot on day
// dow, from the first such date on or after from through until inclusive.
func WeeklyOccurrences(dow Weekday, start, end time.Duration, from, until time.Time) []TimeRange {
	if !dow.Valid() || end <= start {
		return nil
	}
	from = DateOf(from)
	until = DateOf(until)

	var result []TimeRange
	day := from.AddDate(0, 0, WeekdayOf(from).DaysUntil(dow))
	for ; !day.After(until); day = day.AddDate(0, 0, 7) {
		result = append(result, WindowOn(day, start, end))
	}
	return result
}

func containsWeekday(list []Weekday, w Weekday) bool {
	for _, d := range list {
		if d == w {
			return true
		}
	}
	return false
}
