package calendar

import (
	"errors"
	"slices"
	"time"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrSlotDuration     = errors.New("slot duration must be positive")
)

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange builds an interval, rejecting zero bounds and End <= Start.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() {
		return TimeRange{}, ErrInvalidTimeRange
	}
	if !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Overlaps reports whether tr and other share at least one instant.
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return Overlaps(tr.Start, tr.End, other.Start, other.End)
}

// Contains reports whether other lies entirely inside tr.
func (tr TimeRange) Contains(other TimeRange) bool {
	return Contains(tr.Start, tr.End, other.Start, other.End)
}

// ContainsInstant reports whether t falls in [Start, End).
func (tr TimeRange) ContainsInstant(t time.Time) bool {
	return ContainsInstant(tr.Start, tr.End, t)
}

// UTC returns the interval with both bounds converted to UTC.
func (tr TimeRange) UTC() TimeRange {
	return TimeRange{Start: tr.Start.UTC(), End: tr.End.UTC()}
}

// Overlaps is the half-open overlap predicate: aStart < bEnd && bStart < aEnd.
// Adjacent intervals ([10:00,11:00) and [11:00,12:00)) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Contains reports windowStart <= start && end <= windowEnd.
func Contains(windowStart, windowEnd, start, end time.Time) bool {
	return !start.Before(windowStart) && !end.After(windowEnd)
}

// ContainsInstant reports windowStart <= t < windowEnd.
func ContainsInstant(windowStart, windowEnd, t time.Time) bool {
	return !t.Before(windowStart) && t.Before(windowEnd)
}

// Merge sorts ranges and coalesces the ones that overlap or touch, so
// [09:00,12:00) and [12:00,15:00) become [09:00,15:00). Empty ranges are
// dropped.
func Merge(ranges []TimeRange) []TimeRange {
	sorted := make([]TimeRange, 0, len(ranges))
	for _, r := range ranges {
		if r.End.After(r.Start) {
			sorted = append(sorted, r)
		}
	}
	slices.SortFunc(sorted, func(a, b TimeRange) int { return a.Start.Compare(b.Start) })

	merged := make([]TimeRange, 0, len(sorted))
	for _, r := range sorted {
		if n := len(merged); n > 0 && !r.Start.After(merged[n-1].End) {
			if r.End.After(merged[n-1].End) {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// DateRange is a closed range of calendar dates. A nil End means the range
// never ends.
type DateRange struct {
	Start time.Time
	End   *time.Time
}

// NewDateRange truncates the bounds to dates and rejects End before Start.
func NewDateRange(start time.Time, end *time.Time) (DateRange, error) {
	if start.IsZero() {
		return DateRange{}, ErrInvalidTimeRange
	}
	r := DateRange{Start: DateOf(start)}
	if end != nil {
		e := DateOf(*end)
		if e.Before(r.Start) {
			return DateRange{}, ErrInvalidTimeRange
		}
		r.End = &e
	}
	return r, nil
}

// Overlaps reports whether two closed date ranges share at least one day.
func (r DateRange) Overlaps(other DateRange) bool {
	if r.End != nil && r.End.Before(other.Start) {
		return false
	}
	if other.End != nil && other.End.Before(r.Start) {
		return false
	}
	return true
}

// Covers reports whether day lies inside the range.
func (r DateRange) Covers(day time.Time) bool {
	d := DateOf(day)
	if d.Before(r.Start) {
		return false
	}
	return r.End == nil || !d.After(*r.End)
}
