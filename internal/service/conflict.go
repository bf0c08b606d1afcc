package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/coaching-platform/internal/calendar"
	"github.com/Leganyst/coaching-platform/internal/repository"
)

// ConflictDetector tests a proposed interval against the coach's confirmed
// and pending bookings. Cancelled and PendingCredits bookings never conflict.
type ConflictDetector struct {
	repo repository.BookingRepository
}

func NewConflictDetector(repo repository.BookingRepository) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// Conflicts returns the ids of active bookings overlapping [start, end).
// excludeID skips the booking being rescheduled.
func (d *ConflictDetector) Conflicts(ctx context.Context, coachID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]uuid.UUID, error) {
	proposed, err := calendar.NewTimeRange(start.UTC(), end.UTC())
	if err != nil {
		return nil, invalid("end", "must be after start")
	}
	candidates, err := d.repo.ListActiveOverlapping(ctx, coachID, proposed.Start, proposed.End, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list coach bookings: %w", err)
	}

	var ids []uuid.UUID
	for i := range candidates {
		if candidates[i].IsActive() && proposed.Overlaps(candidates[i].Range()) {
			ids = append(ids, candidates[i].ID)
		}
	}
	return ids, nil
}

func (d *ConflictDetector) HasConflict(ctx context.Context, coachID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	ids, err := d.Conflicts(ctx, coachID, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// Check returns a *ConflictError when the interval is taken.
func (d *ConflictDetector) Check(ctx context.Context, coachID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) error {
	ids, err := d.Conflicts(ctx, coachID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return &ConflictError{Start: start.UTC(), End: end.UTC(), BookingIDs: ids}
	}
	return nil
}
