package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/calendar"
)

var (
	// ErrNotFound is returned when the referenced entity does not exist or
	// does not belong to the acting party.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the actor may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrOverrideExists is returned when a date already carries an override.
	ErrOverrideExists = errors.New("date override already exists for this date")
)

// ValidationError captures field level problems with the input.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// orNil keeps a typed nil from leaking into an error interface.
func (v *ValidationError) orNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

func invalid(field, message string) error {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// AdmissionReason is the closed set of reasons a booking is not admitted.
type AdmissionReason string

const (
	AdmissionInsufficientCredits AdmissionReason = "insufficient_credits"
	AdmissionAccountInactive     AdmissionReason = "account_inactive"
	AdmissionCoachUnavailable    AdmissionReason = "coach_unavailable"
	AdmissionDateBlocked         AdmissionReason = "date_blocked"
)

type AdmissionError struct {
	Reason AdmissionReason
	Detail string
}

func (e *AdmissionError) Error() string {
	if e.Detail == "" {
		return "booking not admitted: " + string(e.Reason)
	}
	return fmt.Sprintf("booking not admitted: %s: %s", e.Reason, e.Detail)
}

// ConflictError reports that the proposed interval overlaps active bookings.
type ConflictError struct {
	Start, End time.Time
	BookingIDs []uuid.UUID
}

func (e *ConflictError) Error() string {
	return "time slot conflicts with an existing booking: " +
		calendar.FormatRange(calendar.TimeRange{Start: e.Start, End: e.End}, "")
}

// OverlapError reports an assignment date range intersecting an open
// assignment of the same customer.
type OverlapError struct {
	CustomerID uuid.UUID
	ExistingID uuid.UUID
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("customer %s already has an overlapping assignment %s", e.CustomerID, e.ExistingID)
}

// StateError reports a transition that the current status does not allow.
type StateError struct {
	Entity string
	Status string
	Action string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %q", e.Action, e.Entity, e.Status)
}

// notFound maps gorm's missing-row error onto ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isRejection reports whether err is an expected business outcome rather
// than an infrastructure fault.
func isRejection(err error) bool {
	var (
		vErr *ValidationError
		aErr *AdmissionError
		cErr *ConflictError
		oErr *OverlapError
		sErr *StateError
	)
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrOverrideExists) ||
		errors.As(err, &vErr) ||
		errors.As(err, &aErr) ||
		errors.As(err, &cErr) ||
		errors.As(err, &oErr) ||
		errors.As(err, &sErr)
}

func logRejection(log *zap.Logger, msg string, err error) {
	if isRejection(err) {
		log.Info(msg, zap.Error(err))
		return
	}
	log.Error(msg, zap.Error(err))
}
