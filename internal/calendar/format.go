package calendar

import "fmt"

// FormatRange renders an interval as "Monday, 03.03.2025, 09:00–10:00".
// If id is not empty it is appended in parentheses.
func FormatRange(tr TimeRange, id string) string {
	start := tr.Start.UTC()
	end := tr.End.UTC()

	base := fmt.Sprintf("%s, %s, %s–%s",
		WeekdayOf(start),
		start.Format("02.01.2006"),
		start.Format("15:04"),
		end.Format("15:04"),
	)
	if id != "" {
		return fmt.Sprintf("%s (ID: %s)", base, id)
	}
	return base
}
