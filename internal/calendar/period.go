package calendar

import "time"

// AddMonths moves date forward n calendar months. A day past the end of the
// target month is clamped to its last day, so Jan 31 + 1 month is Feb 28/29.
func AddMonths(date time.Time, n int) time.Time {
	date = DateOf(date)
	y, m, d := date.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
