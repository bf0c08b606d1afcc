package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/coaching-platform/internal/calendar"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/repository"
)

// AvailabilitySource tells which kind of entry decided the result.
type AvailabilitySource string

const (
	SourceWeekly       AvailabilitySource = "weekly"
	SourceDateSpecific AvailabilitySource = "date_specific"
	SourceNone         AvailabilitySource = "none"
)

// AvailabilityResult is the resolved availability of a coach for one date.
type AvailabilityResult struct {
	CoachID   uuid.UUID            `json:"coach_id"`
	Date      time.Time            `json:"date"`
	Available bool                 `json:"available"`
	Source    AvailabilitySource   `json:"source"`
	Blocked   bool                 `json:"blocked"`
	Reason    string               `json:"reason,omitempty"`
	Windows   []calendar.TimeRange `json:"windows"`
}

// AvailabilityCheck answers whether one instant is available.
type AvailabilityCheck struct {
	Available bool                `json:"available"`
	Source    AvailabilitySource  `json:"source"`
	Window    *calendar.TimeRange `json:"window,omitempty"`
}

// AvailabilityResolver applies override precedence: a blocked date wins,
// then an override window, then the union of active weekly rules.
type AvailabilityResolver struct {
	repo repository.AvailabilityRepository
}

func NewAvailabilityResolver(repo repository.AvailabilityRepository) *AvailabilityResolver {
	return &AvailabilityResolver{repo: repo}
}

func (r *AvailabilityResolver) ResolveWindows(ctx context.Context, coachID uuid.UUID, date time.Time) (*AvailabilityResult, error) {
	day := calendar.DateOf(date)
	res := &AvailabilityResult{CoachID: coachID, Date: day, Source: SourceNone, Windows: []calendar.TimeRange{}}

	override, err := r.repo.FindOverride(ctx, coachID, day)
	if err != nil {
		return nil, fmt.Errorf("find override: %w", err)
	}
	if override != nil {
		res.Source = SourceDateSpecific
		res.Reason = override.Reason
		switch override.Kind {
		case model.DateOverrideBlocked:
			res.Blocked = true
			return res, nil
		case model.DateOverrideOverride:
			if override.StartTime != nil && override.EndTime != nil {
				res.Windows = append(res.Windows, calendar.WindowOn(day, model.Clock(*override.StartTime), model.Clock(*override.EndTime)))
			}
			res.Available = len(res.Windows) > 0
			return res, nil
		}
	}

	rules, err := r.repo.ListActiveRules(ctx, coachID, int(calendar.WeekdayOf(day)))
	if err != nil {
		return nil, fmt.Errorf("list weekly rules: %w", err)
	}
	if len(rules) == 0 {
		return res, nil
	}

	res.Source = SourceWeekly
	for _, rule := range rules {
		w := calendar.WindowOn(day, model.Clock(rule.StartTime), model.Clock(rule.EndTime))
		if w.End.After(w.Start) {
			res.Windows = append(res.Windows, w)
		}
	}
	res.Available = len(res.Windows) > 0
	return res, nil
}

// IsAvailable tests the instant at (start <= at < end) against the windows
// of its calendar date.
func (r *AvailabilityResolver) IsAvailable(ctx context.Context, coachID uuid.UUID, at time.Time) (*AvailabilityCheck, error) {
	res, err := r.ResolveWindows(ctx, coachID, at)
	if err != nil {
		return nil, err
	}
	check := &AvailabilityCheck{Source: res.Source}
	for _, w := range res.Windows {
		if w.ContainsInstant(at.UTC()) {
			check.Available = true
			check.Window = &w
			break
		}
	}
	return check, nil
}

// Admit checks that [start, end) lies inside the windows of the start date.
// Windows are merged first, so a booking may span two adjacent rules.
func (r *AvailabilityResolver) Admit(ctx context.Context, coachID uuid.UUID, start, end time.Time) error {
	res, err := r.ResolveWindows(ctx, coachID, start)
	if err != nil {
		return err
	}
	if res.Blocked {
		return &AdmissionError{Reason: AdmissionDateBlocked, Detail: res.Reason}
	}
	want := calendar.TimeRange{Start: start.UTC(), End: end.UTC()}
	for _, w := range calendar.Merge(res.Windows) {
		if w.Contains(want) {
			return nil
		}
	}
	return &AdmissionError{Reason: AdmissionCoachUnavailable, Detail: calendar.FormatRange(want, "")}
}
