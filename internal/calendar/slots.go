package calendar

import (
	"slices"
	"time"
)

// SplitToTimeSlots cuts tr into consecutive slots of slotDuration.
// A tail shorter than slotDuration is dropped.
func SplitToTimeSlots(tr TimeRange, slotDuration time.Duration) ([]TimeRange, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}
	if !tr.End.After(tr.Start) {
		return []TimeRange{}, nil
	}

	var slots []TimeRange
	for cur := tr.Start; !cur.Add(slotDuration).After(tr.End); cur = cur.Add(slotDuration) {
		slots = append(slots, TimeRange{Start: cur, End: cur.Add(slotDuration)})
	}
	return slots, nil
}

// GenerateSlots returns the bookable start times of all windows: every
// slotDuration from each window start while the slot still ends inside the
// window. The result is deduplicated and sorted ascending.
func GenerateSlots(windows []TimeRange, slotDuration time.Duration) ([]time.Time, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}

	starts := make([]time.Time, 0)
	for _, w := range windows {
		slots, err := SplitToTimeSlots(w, slotDuration)
		if err != nil {
			return nil, err
		}
		for _, s := range slots {
			starts = append(starts, s.Start)
		}
	}

	slices.SortFunc(starts, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(starts, func(a, b time.Time) bool { return a.Equal(b) }), nil
}
