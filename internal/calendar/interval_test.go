package calendar

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func equalTimeRange(a, b TimeRange) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

func equalTimeRangeSlices(a, b []TimeRange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalTimeRange(a[i], b[i]) {
			return false
		}
	}
	return true
}

func clock(h, m int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

//
// Overlaps / Contains
//

func TestOverlaps_Symmetric(t *testing.T) {
	a := TimeRange{Start: mustTime(t, 2025, 3, 3, 10, 0), End: mustTime(t, 2025, 3, 3, 11, 0)}
	b := TimeRange{Start: mustTime(t, 2025, 3, 3, 10, 30), End: mustTime(t, 2025, 3, 3, 11, 30)}

	if !a.Overlaps(b) {
		t.Fatalf("expected A to overlap B")
	}
	if !b.Overlaps(a) {
		t.Fatalf("expected B to overlap A")
	}
}

func TestOverlaps_AdjacentDoNotOverlap(t *testing.T) {
	a := TimeRange{Start: mustTime(t, 2025, 3, 3, 10, 0), End: mustTime(t, 2025, 3, 3, 11, 0)}
	c := TimeRange{Start: mustTime(t, 2025, 3, 3, 11, 0), End: mustTime(t, 2025, 3, 3, 12, 0)}

	if a.Overlaps(c) || c.Overlaps(a) {
		t.Fatalf("adjacent intervals must not overlap")
	}
}

func TestOverlaps_Nested(t *testing.T) {
	outer := TimeRange{Start: mustTime(t, 2025, 3, 3, 9, 0), End: mustTime(t, 2025, 3, 3, 17, 0)}
	inner := TimeRange{Start: mustTime(t, 2025, 3, 3, 12, 0), End: mustTime(t, 2025, 3, 3, 13, 0)}

	if !outer.Overlaps(inner) || !inner.Overlaps(outer) {
		t.Fatalf("nested intervals must overlap")
	}
	if !outer.Contains(inner) {
		t.Fatalf("expected outer to contain inner")
	}
	if inner.Contains(outer) {
		t.Fatalf("inner must not contain outer")
	}
}

func TestContainsInstant_HalfOpen(t *testing.T) {
	w := TimeRange{Start: mustTime(t, 2025, 3, 3, 9, 0), End: mustTime(t, 2025, 3, 3, 17, 0)}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"start is inside", mustTime(t, 2025, 3, 3, 9, 0), true},
		{"middle", mustTime(t, 2025, 3, 3, 12, 30), true},
		{"end is outside", mustTime(t, 2025, 3, 3, 17, 0), false},
		{"before", mustTime(t, 2025, 3, 3, 8, 59), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := w.ContainsInstant(tc.at); got != tc.want {
				t.Fatalf("ContainsInstant(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestNewTimeRange_Invalid(t *testing.T) {
	start := mustTime(t, 2025, 1, 1, 10, 0)

	if _, err := NewTimeRange(start, start); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange for empty range, got %v", err)
	}
	if _, err := NewTimeRange(start, start.Add(-time.Hour)); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange for reversed range, got %v", err)
	}
	if _, err := NewTimeRange(time.Time{}, start); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange for zero start, got %v", err)
	}
}

//
// Merge
//

func TestMerge_CoalescesTouchingAndOverlapping(t *testing.T) {
	at := func(h int) time.Time { return mustTime(t, 2025, 1, 1, h, 0) }
	got := Merge([]TimeRange{
		{Start: at(14), End: at(16)},
		{Start: at(9), End: at(12)},
		{Start: at(12), End: at(13)},
		{Start: at(15), End: at(17)},
		{Start: at(18), End: at(18)},
		{Start: at(19), End: at(20)},
	})
	want := []TimeRange{
		{Start: at(9), End: at(13)},
		{Start: at(14), End: at(17)},
		{Start: at(19), End: at(20)},
	}
	if !equalTimeRangeSlices(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestMerge_Nested(t *testing.T) {
	at := func(h int) time.Time { return mustTime(t, 2025, 1, 1, h, 0) }
	got := Merge([]TimeRange{{Start: at(9), End: at(17)}, {Start: at(10), End: at(11)}})
	if len(got) != 1 || !got[0].Start.Equal(at(9)) || !got[0].End.Equal(at(17)) {
		t.Fatalf("expected the outer range, got %+v", got)
	}
	if got := Merge(nil); len(got) != 0 {
		t.Fatalf("expected no ranges, got %+v", got)
	}
}

//
// DateRange
//

func TestDateRange_Overlaps(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC) }
	ptr := func(tm time.Time) *time.Time { return &tm }

	existing, err := NewDateRange(d(5), ptr(d(15)))
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}

	cases := []struct {
		name  string
		start time.Time
		end   *time.Time
		want  bool
	}{
		{"intersecting", d(1), ptr(d(10)), true},
		{"disjoint after", d(16), ptr(d(20)), false},
		{"touching last day", d(15), ptr(d(20)), true},
		{"open ended before", d(1), nil, true},
		{"single day before", d(4), ptr(d(4)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewDateRange(tc.start, tc.end)
			if err != nil {
				t.Fatalf("NewDateRange: %v", err)
			}
			if got := r.Overlaps(existing); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := existing.Overlaps(r); got != tc.want {
				t.Fatalf("reverse Overlaps = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDateRange_AssignmentExample(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC) }
	ptr := func(tm time.Time) *time.Time { return &tm }

	active, _ := NewDateRange(d(5), ptr(d(15)))
	first, _ := NewDateRange(d(1), ptr(d(10)))
	later, _ := NewDateRange(d(16), ptr(d(20)))

	if !first.Overlaps(active) {
		t.Fatalf("expected [1,10] to overlap [5,15]")
	}
	if later.Overlaps(active) {
		t.Fatalf("expected [16,20] not to overlap [5,15]")
	}
}

func TestDateRange_OpenEndedBothSides(t *testing.T) {
	a, _ := NewDateRange(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	b, _ := NewDateRange(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	if !a.Overlaps(b) {
		t.Fatalf("two open ranges always overlap")
	}
	if !a.Covers(time.Date(2099, 6, 1, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("open range should cover any later day")
	}
}

func TestNewDateRange_EndBeforeStart(t *testing.T) {
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NewDateRange(end.AddDate(0, 0, 1), &end); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}

//
// Slots
//

func TestGenerateSlots_Determinism(t *testing.T) {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		windows []TimeRange
		want    []time.Duration
	}{
		{"three full hours", []TimeRange{WindowOn(day, clock(9, 0), clock(12, 0))}, []time.Duration{clock(9, 0), clock(10, 0), clock(11, 0)}},
		{"remainder dropped", []TimeRange{WindowOn(day, clock(9, 0), clock(10, 45))}, []time.Duration{clock(9, 0)}},
		{"too short", []TimeRange{WindowOn(day, clock(9, 0), clock(9, 30))}, nil},
		{
			"unsorted overlapping windows",
			[]TimeRange{
				WindowOn(day, clock(14, 0), clock(16, 0)),
				WindowOn(day, clock(9, 0), clock(11, 0)),
				WindowOn(day, clock(10, 0), clock(12, 0)),
			},
			[]time.Duration{clock(9, 0), clock(10, 0), clock(11, 0), clock(14, 0), clock(15, 0)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GenerateSlots(tc.windows, time.Hour)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d slots, got %v", len(tc.want), got)
			}
			for i := range got {
				if !got[i].Equal(At(day, tc.want[i])) {
					t.Fatalf("slot %d: expected %v, got %v", i, At(day, tc.want[i]), got[i])
				}
			}
		})
	}
}

func TestGenerateSlots_InvalidDuration(t *testing.T) {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	windows := []TimeRange{WindowOn(day, clock(9, 0), clock(12, 0))}

	for _, d := range []time.Duration{0, -time.Minute} {
		if _, err := GenerateSlots(windows, d); !errors.Is(err, ErrSlotDuration) {
			t.Fatalf("duration %v: expected ErrSlotDuration, got %v", d, err)
		}
	}
}

func TestSplitToTimeSlots_Basic(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 12, 0)}

	slots, err := SplitToTimeSlots(tr, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 10, 30)},
		{Start: mustTime(t, 2025, 1, 1, 10, 30), End: mustTime(t, 2025, 1, 1, 11, 0)},
		{Start: mustTime(t, 2025, 1, 1, 11, 0), End: mustTime(t, 2025, 1, 1, 11, 30)},
		{Start: mustTime(t, 2025, 1, 1, 11, 30), End: mustTime(t, 2025, 1, 1, 12, 0)},
	}
	if !equalTimeRangeSlices(slots, expected) {
		t.Fatalf("expected %+v, got %+v", expected, slots)
	}
}

//
// Weekdays and series
//

func TestWeekdayOf_MondayIsZero(t *testing.T) {
	// 2025-03-03 is a Monday.
	mon := time.Date(2025, 3, 3, 23, 59, 0, 0, time.UTC)
	if got := WeekdayOf(mon); got != Monday {
		t.Fatalf("expected Monday, got %v", got)
	}
	if got := WeekdayOf(mon.AddDate(0, 0, 6)); got != Sunday {
		t.Fatalf("expected Sunday, got %v", got)
	}
}

func TestWeekday_DaysUntil(t *testing.T) {
	if got := Wednesday.DaysUntil(Monday); got != 5 {
		t.Fatalf("Wednesday -> Monday: expected 5, got %d", got)
	}
	if got := Monday.DaysUntil(Monday); got != 0 {
		t.Fatalf("Monday -> Monday: expected 0, got %d", got)
	}
}

func TestParseWeekday(t *testing.T) {
	if w, err := ParseWeekday("friday"); err != nil || w != Friday {
		t.Fatalf("expected Friday, got %v (%v)", w, err)
	}
	if w, err := ParseWeekday("6"); err != nil || w != Sunday {
		t.Fatalf("expected Sunday, got %v (%v)", w, err)
	}
	if _, err := ParseWeekday("7"); err == nil {
		t.Fatalf("expected error for 7")
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]time.Duration{
		"09:30":    9*time.Hour + 30*time.Minute,
		"00:00":    0,
		"17:45:00": 17*time.Hour + 45*time.Minute,
		"24:00":    24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Fatalf("ParseClock(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "9h", "25:00", "12:60"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if got := FormatClock(9*time.Hour + 5*time.Minute); got != "09:05" {
		t.Fatalf("FormatClock = %q", got)
	}
}

func TestExpandWeekdaySeries_MonWed(t *testing.T) {
	// Thursday 2025-03-06 18:00-19:30, repeating Mon/Wed until 2025-03-19.
	first := TimeRange{Start: mustTime(t, 2025, 3, 6, 18, 0), End: mustTime(t, 2025, 3, 6, 19, 30)}

	got, err := ExpandWeekdaySeries(WeekdaySeries{
		First:    first,
		Weekdays: []Weekday{Monday, Wednesday},
		Until:    time.Date(2025, 3, 19, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []TimeRange{
		{Start: mustTime(t, 2025, 3, 10, 18, 0), End: mustTime(t, 2025, 3, 10, 19, 30)},
		{Start: mustTime(t, 2025, 3, 12, 18, 0), End: mustTime(t, 2025, 3, 12, 19, 30)},
		{Start: mustTime(t, 2025, 3, 17, 18, 0), End: mustTime(t, 2025, 3, 17, 19, 30)},
		{Start: mustTime(t, 2025, 3, 19, 18, 0), End: mustTime(t, 2025, 3, 19, 19, 30)},
	}
	if !equalTimeRangeSlices(got, expected) {
		t.Fatalf("expected %+v, got %+v", expected, got)
	}
}

func TestExpandWeekdaySeries_Errors(t *testing.T) {
	first := TimeRange{Start: mustTime(t, 2025, 3, 6, 18, 0), End: mustTime(t, 2025, 3, 6, 19, 0)}

	if _, err := ExpandWeekdaySeries(WeekdaySeries{First: first, Until: first.End}); !errors.Is(err, ErrEmptyWeekdays) {
		t.Fatalf("expected ErrEmptyWeekdays, got %v", err)
	}
	_, err := ExpandWeekdaySeries(WeekdaySeries{
		First:    first,
		Weekdays: []Weekday{Monday},
		Until:    first.Start.AddDate(0, 0, -1),
	})
	if !errors.Is(err, ErrSeriesEndBefore) {
		t.Fatalf("expected ErrSeriesEndBefore, got %v", err)
	}
}

func TestWeeklyOccurrences_Horizon(t *testing.T) {
	// Today is Wednesday 2025-03-05; Monday sessions for two weeks.
	today := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)
	got := WeeklyOccurrences(Monday, clock(9, 0), clock(10, 0), today, today.AddDate(0, 0, 14))

	expected := []TimeRange{
		{Start: mustTime(t, 2025, 3, 10, 9, 0), End: mustTime(t, 2025, 3, 10, 10, 0)},
		{Start: mustTime(t, 2025, 3, 17, 9, 0), End: mustTime(t, 2025, 3, 17, 10, 0)},
	}
	if !equalTimeRangeSlices(got, expected) {
		t.Fatalf("expected %+v, got %+v", expected, got)
	}
}

//
// Formatting
//

func TestFormatRange(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 3, 3, 9, 0), End: mustTime(t, 2025, 3, 3, 10, 0)}

	got := FormatRange(tr, "")
	if got != "Monday, 03.03.2025, 09:00–10:00" {
		t.Fatalf("unexpected format: %q", got)
	}
	if withID := FormatRange(tr, "abc"); !strings.HasSuffix(withID, "(ID: abc)") {
		t.Fatalf("expected id suffix, got %q", withID)
	}
}

//
// Paginate
//

func TestPaginate_Basic(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	page := Paginate(items, 1, 5)

	if len(page.Items) != 5 {
		t.Fatalf("expected 5 items on page 1, got %d", len(page.Items))
	}
	if page.HasPrev {
		t.Fatalf("expected HasPrev=false on first page")
	}
	if !page.HasNext {
		t.Fatalf("expected HasNext=true on first page")
	}
	if page.Total != len(items) {
		t.Fatalf("expected Total=%d, got %d", len(items), page.Total)
	}
}

func TestPaginate_LastPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	page := Paginate(items, 2, 4)

	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items on last page, got %d", len(page.Items))
	}
	if !page.HasPrev || page.HasNext {
		t.Fatalf("expected HasPrev=true HasNext=false on last page, got %+v", page)
	}
}

func TestPaginate_Empty(t *testing.T) {
	var items []int
	page := Paginate(items, 1, 10)

	if len(page.Items) != 0 {
		t.Fatalf("expected 0 items, got %d", len(page.Items))
	}
	if page.HasNext || page.HasPrev {
		t.Fatalf("expected no prev/next for empty list")
	}
}

func TestPageOf_HasNext(t *testing.T) {
	p := PageOf([]int{1, 2}, 5, 1, 2)
	if !p.HasNext || p.Total != 5 {
		t.Fatalf("unexpected page %+v", p)
	}
	p = PageOf([]int{5}, 5, 3, 2)
	if p.HasNext || !p.HasPrev {
		t.Fatalf("unexpected last page %+v", p)
	}
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	cases := []struct {
		in   time.Time
		n    int
		want time.Time
	}{
		{day(2025, time.January, 31), 1, day(2025, time.February, 28)},
		{day(2024, time.January, 31), 1, day(2024, time.February, 29)},
		{day(2025, time.March, 15), 3, day(2025, time.June, 15)},
		{day(2025, time.November, 30), 3, day(2026, time.February, 28)},
		{day(2025, time.May, 31), 12, day(2026, time.May, 31)},
	}
	for _, c := range cases {
		if got := AddMonths(c.in, c.n); !got.Equal(c.want) {
			t.Fatalf("AddMonths(%s, %d) = %s, want %s", c.in.Format("2006-01-02"), c.n, got.Format("2006-01-02"), c.want.Format("2006-01-02"))
		}
	}
}
