package grpcapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Leganyst/coaching-platform/internal/calendar"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/service"
)

const dateLayout = time.DateOnly

type Booking struct {
	ID               uuid.UUID           `json:"id"`
	CoachID          uuid.UUID           `json:"coach_id"`
	CustomerID       *uuid.UUID          `json:"customer_id,omitempty"`
	Start            time.Time           `json:"start"`
	End              time.Time           `json:"end"`
	Status           model.BookingStatus `json:"status"`
	EventType        model.EventType     `json:"event_type"`
	Title            string              `json:"title,omitempty"`
	ParentEventID    *uuid.UUID          `json:"parent_event_id,omitempty"`
	SubscriptionID   *uuid.UUID          `json:"subscription_id,omitempty"`
	Refunded         bool                `json:"refunded"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	CancellationNote string              `json:"cancellation_reason,omitempty"`
	// Display is the human readable interval.
	Display string `json:"display"`
}

func bookingOf(b *model.Booking) *Booking {
	if b == nil {
		return nil
	}
	return &Booking{
		ID:               b.ID,
		CoachID:          b.CoachID,
		CustomerID:       b.CustomerID,
		Start:            b.StartTime,
		End:              b.EndTime,
		Status:           b.Status,
		EventType:        b.EventType,
		Title:            b.Title,
		ParentEventID:    b.ParentEventID,
		SubscriptionID:   b.SubscriptionID,
		Refunded:         b.Refunded,
		CancelledAt:      b.CancelledAt,
		CancellationNote: b.CancellationReason,
		Display:          calendar.FormatRange(calendar.TimeRange{Start: b.StartTime, End: b.EndTime}, ""),
	}
}

func bookingsOf(list []model.Booking) []*Booking {
	out := make([]*Booking, 0, len(list))
	for i := range list {
		out = append(out, bookingOf(&list[i]))
	}
	return out
}

type Assignment struct {
	ID                uuid.UUID              `json:"id"`
	PrimaryCoachID    uuid.UUID              `json:"primary_coach_id"`
	SubstituteCoachID uuid.UUID              `json:"substitute_coach_id"`
	CustomerID        uuid.UUID              `json:"customer_id"`
	StartDate         string                 `json:"start_date"`
	EndDate           string                 `json:"end_date,omitempty"`
	Status            model.AssignmentStatus `json:"status"`
	Reason            string                 `json:"reason,omitempty"`
	AcceptedAt        *time.Time             `json:"accepted_at,omitempty"`
	Rating            *int                   `json:"rating,omitempty"`

	Permissions model.AssignmentPermissions `json:"permissions"`
}

func assignmentOf(a *model.CoachAssignment) *Assignment {
	if a == nil {
		return nil
	}
	r := a.DateRange()
	out := &Assignment{
		ID:                a.ID,
		PrimaryCoachID:    a.PrimaryCoachID,
		SubstituteCoachID: a.SubstituteCoachID,
		CustomerID:        a.CustomerID,
		StartDate:         r.Start.Format(dateLayout),
		Status:            a.Status,
		Reason:            a.Reason,
		AcceptedAt:        a.AcceptedAt,
		Rating:            a.Rating,
		Permissions:       a.AssignmentPermissions,
	}
	if r.End != nil {
		out.EndDate = r.End.Format(dateLayout)
	}
	return out
}

func assignmentsOf(list []model.CoachAssignment) []*Assignment {
	out := make([]*Assignment, 0, len(list))
	for i := range list {
		out = append(out, assignmentOf(&list[i]))
	}
	return out
}

type CoachDateRequest struct {
	CoachID uuid.UUID `json:"coach_id"`
	Date    string    `json:"date"`
}

type ListSlotsRequest struct {
	CoachID uuid.UUID `json:"coach_id"`
	Date    string    `json:"date"`
	// DurationMinutes defaults to the configured slot length when 0.
	DurationMinutes int `json:"duration_minutes"`
}

type ListSlotsResponse struct {
	Slots []time.Time `json:"slots"`
}

type BookingResponse struct {
	Booking   *Booking             `json:"booking"`
	Instances []*Booking           `json:"instances,omitempty"`
	Skipped   []calendar.TimeRange `json:"skipped,omitempty"`
}

type CancelBookingResponse struct {
	Booking  *Booking `json:"booking"`
	Refunded bool     `json:"refunded"`
	Promoted int      `json:"promoted"`
}

type ListBookingsResponse struct {
	Bookings []*Booking `json:"bookings"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	HasNext  bool       `json:"has_next"`
}

type CreateAssignmentsRequest struct {
	PrimaryCoachID    uuid.UUID                    `json:"primary_coach_id"`
	SubstituteCoachID uuid.UUID                    `json:"substitute_coach_id"`
	CustomerIDs       []uuid.UUID                  `json:"customer_ids"`
	StartDate         string                       `json:"start_date"`
	EndDate           string                       `json:"end_date,omitempty"`
	Reason            string                       `json:"reason,omitempty"`
	Permissions       *model.AssignmentPermissions `json:"permissions,omitempty"`
}

type CreateAssignmentsResponse struct {
	Created  []*Assignment                 `json:"created"`
	Rejected []service.AssignmentRejection `json:"rejected"`
}

type AssignmentActionRequest struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	ActorID      uuid.UUID `json:"actor_id"`
	Reason       string    `json:"reason,omitempty"`
}

type AssignmentResponse struct {
	Assignment     *Assignment                `json:"assignment"`
	AllowedActions []service.AssignmentAction `json:"allowed_actions"`
}

type DailyTransitionRequest struct {
	// Today defaults to the current date when empty.
	Today string `json:"today,omitempty"`
}

type CustomerRequest struct {
	CustomerID uuid.UUID `json:"customer_id"`
}

type PromoteResponse struct {
	Promoted int `json:"promoted"`
}

// Times of day travel as "HH:MM" and days of the week as "0".."6" or a day
// name, Monday first.
type WeeklyRule struct {
	ID        *uuid.UUID `json:"id,omitempty"`
	DayOfWeek string     `json:"day_of_week"`
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
	IsActive  bool       `json:"is_active"`
}

func weeklyRuleOf(r *model.WeeklyAvailabilityRule) WeeklyRule {
	return WeeklyRule{
		ID:        ptr(r.ID),
		DayOfWeek: calendar.Weekday(r.DayOfWeek).String(),
		StartTime: calendar.FormatClock(model.Clock(r.StartTime)),
		EndTime:   calendar.FormatClock(model.Clock(r.EndTime)),
		IsActive:  r.IsActive,
	}
}

func weeklyRulesOf(list []model.WeeklyAvailabilityRule) []WeeklyRule {
	out := make([]WeeklyRule, 0, len(list))
	for i := range list {
		out = append(out, weeklyRuleOf(&list[i]))
	}
	return out
}

type WeeklyRulesRequest struct {
	CoachID uuid.UUID    `json:"coach_id"`
	Rules   []WeeklyRule `json:"rules"`
}

type WeeklyRulesResponse struct {
	Rules []WeeklyRule `json:"rules"`
}

type CoachRequest struct {
	CoachID uuid.UUID `json:"coach_id"`
}

// ResourceRef names a coach-owned row.
type ResourceRef struct {
	CoachID uuid.UUID `json:"coach_id"`
	ID      uuid.UUID `json:"id"`
}

type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

type DateOverride struct {
	ID        uuid.UUID              `json:"id"`
	CoachID   uuid.UUID              `json:"coach_id"`
	Date      string                 `json:"date"`
	Kind      model.DateOverrideKind `json:"kind"`
	StartTime string                 `json:"start_time,omitempty"`
	EndTime   string                 `json:"end_time,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
}

func dateOverrideOf(o *model.DateOverride) *DateOverride {
	out := &DateOverride{
		ID:      o.ID,
		CoachID: o.CoachID,
		Date:    model.AsTime(o.Date).Format(dateLayout),
		Kind:    o.Kind,
		Reason:  o.Reason,
	}
	if o.StartTime != nil && o.EndTime != nil {
		out.StartTime = calendar.FormatClock(model.Clock(*o.StartTime))
		out.EndTime = calendar.FormatClock(model.Clock(*o.EndTime))
	}
	return out
}

func dateOverridesOf(list []model.DateOverride) []*DateOverride {
	out := make([]*DateOverride, 0, len(list))
	for i := range list {
		out = append(out, dateOverrideOf(&list[i]))
	}
	return out
}

// DateOverrideRequest creates an override on Date, or updates OverrideID.
// StartDate and EndDate are used by CreateDateOverrideRange and
// ListDateOverrides.
type DateOverrideRequest struct {
	CoachID    uuid.UUID              `json:"coach_id"`
	OverrideID uuid.UUID              `json:"override_id,omitempty"`
	Date       string                 `json:"date,omitempty"`
	StartDate  string                 `json:"start_date,omitempty"`
	EndDate    string                 `json:"end_date,omitempty"`
	Kind       model.DateOverrideKind `json:"kind"`
	StartTime  string                 `json:"start_time,omitempty"`
	EndTime    string                 `json:"end_time,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
}

type DateOverrideRangeResponse struct {
	Created []*DateOverride `json:"created"`
	Skipped []string        `json:"skipped"`
}

type ListDateOverridesResponse struct {
	Overrides []*DateOverride `json:"overrides"`
}

type Account struct {
	CustomerID     uuid.UUID `json:"customer_id"`
	CoachID        uuid.UUID `json:"coach_id"`
	DisplayName    string    `json:"display_name,omitempty"`
	SessionCredits int       `json:"session_credits"`
	IsActive       bool      `json:"is_active"`
}

func accountOf(a *model.CustomerAccount) *Account {
	return &Account{
		CustomerID:     a.CustomerID,
		CoachID:        a.CoachID,
		DisplayName:    a.DisplayName,
		SessionCredits: a.SessionCredits,
		IsActive:       a.IsActive,
	}
}

type TopUpRequest struct {
	CoachID    uuid.UUID `json:"coach_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Amount     int       `json:"amount"`
}

type TopUpResponse struct {
	Account  *Account `json:"account"`
	Promoted int      `json:"promoted"`
}

type Package struct {
	ID               uuid.UUID        `json:"id"`
	CoachID          uuid.UUID        `json:"coach_id"`
	Name             string           `json:"name"`
	Description      string           `json:"description,omitempty"`
	CreditsPerPeriod int              `json:"credits_per_period"`
	IsUnlimited      bool             `json:"is_unlimited"`
	Price            decimal.Decimal  `json:"price"`
	Currency         string           `json:"currency"`
	PeriodType       model.PeriodType `json:"period_type"`
	AutoRenew        bool             `json:"auto_renew"`
	ValidDays        []string         `json:"valid_days,omitempty"`
	IsActive         bool             `json:"is_active"`
}

func packageOf(p *model.Package) *Package {
	out := &Package{
		ID:               p.ID,
		CoachID:          p.CoachID,
		Name:             p.Name,
		Description:      p.Description,
		CreditsPerPeriod: p.CreditsPerPeriod,
		IsUnlimited:      p.IsUnlimited,
		Price:            p.Price,
		Currency:         p.Currency,
		PeriodType:       p.PeriodType,
		AutoRenew:        p.AutoRenew,
		IsActive:         p.IsActive,
	}
	for _, d := range p.ValidDays {
		out.ValidDays = append(out.ValidDays, calendar.Weekday(d).String())
	}
	return out
}

// PackageRequest mirrors service.PackageRequest with named valid days.
type PackageRequest struct {
	CoachID          uuid.UUID        `json:"coach_id"`
	Name             string           `json:"name"`
	Description      string           `json:"description,omitempty"`
	CreditsPerPeriod int              `json:"credits_per_period"`
	IsUnlimited      bool             `json:"is_unlimited"`
	Price            decimal.Decimal  `json:"price"`
	Currency         string           `json:"currency"`
	PeriodType       model.PeriodType `json:"period_type"`
	AutoRenew        bool             `json:"auto_renew"`
	ValidDays        []string         `json:"valid_days,omitempty"`
}

type ListPackagesRequest struct {
	CoachID    uuid.UUID `json:"coach_id"`
	ActiveOnly bool      `json:"active_only"`
}

type ListPackagesResponse struct {
	Packages []*Package `json:"packages"`
}

type Subscription struct {
	ID               uuid.UUID                `json:"id"`
	PackageID        uuid.UUID                `json:"package_id"`
	CustomerID       uuid.UUID                `json:"customer_id"`
	CoachID          uuid.UUID                `json:"coach_id"`
	StartDate        string                   `json:"start_date"`
	EndDate          string                   `json:"end_date,omitempty"`
	CreditsAllocated int                      `json:"credits_allocated"`
	CreditsUsed      int                      `json:"credits_used"`
	CreditsRemaining int                      `json:"credits_remaining"`
	Unlimited        bool                     `json:"unlimited"`
	Status           model.SubscriptionStatus `json:"status"`
}

func subscriptionOf(s *model.PackageSubscription) *Subscription {
	out := &Subscription{
		ID:               s.ID,
		PackageID:        s.PackageID,
		CustomerID:       s.CustomerID,
		CoachID:          s.CoachID,
		StartDate:        model.AsTime(s.StartDate).Format(dateLayout),
		CreditsAllocated: s.CreditsAllocated,
		CreditsUsed:      s.CreditsUsed,
		CreditsRemaining: s.CreditsRemaining,
		Unlimited:        s.IsUnlimited(),
		Status:           s.Status,
	}
	if s.EndDate != nil {
		out.EndDate = model.AsTime(*s.EndDate).Format(dateLayout)
	}
	return out
}

type SubscribeRequest struct {
	CoachID    uuid.UUID `json:"coach_id"`
	PackageID  uuid.UUID `json:"package_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	StartDate  string    `json:"start_date"`
}

type SubscriptionActionRequest struct {
	CoachID        uuid.UUID `json:"coach_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	Reason         string    `json:"reason,omitempty"`
	Amount         int       `json:"amount,omitempty"`
}

type SubscriptionResponse struct {
	Subscription *Subscription `json:"subscription"`
	Promoted     int           `json:"promoted"`
}

type RecurringSchedule struct {
	ID              uuid.UUID `json:"id"`
	SubscriptionID  uuid.UUID `json:"subscription_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	CoachID         uuid.UUID `json:"coach_id"`
	DayOfWeek       string    `json:"day_of_week"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	AutoBookEnabled bool      `json:"auto_book_enabled"`
	BookWeeksAhead  int       `json:"book_weeks_ahead"`
	IsActive        bool      `json:"is_active"`
}

func scheduleOf(r *model.RecurringSchedule) *RecurringSchedule {
	return &RecurringSchedule{
		ID:              r.ID,
		SubscriptionID:  r.SubscriptionID,
		CustomerID:      r.CustomerID,
		CoachID:         r.CoachID,
		DayOfWeek:       calendar.Weekday(r.DayOfWeek).String(),
		StartTime:       calendar.FormatClock(model.Clock(r.StartTime)),
		EndTime:         calendar.FormatClock(model.Clock(r.EndTime)),
		AutoBookEnabled: r.AutoBookEnabled,
		BookWeeksAhead:  r.BookWeeksAhead,
		IsActive:        r.IsActive,
	}
}

type RecurringScheduleRequest struct {
	CoachID         uuid.UUID `json:"coach_id"`
	SubscriptionID  uuid.UUID `json:"subscription_id"`
	DayOfWeek       string    `json:"day_of_week"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	AutoBookEnabled bool      `json:"auto_book_enabled"`
	BookWeeksAhead  int       `json:"book_weeks_ahead"`
}

type RecurringScheduleResponse struct {
	Schedule *RecurringSchedule      `json:"schedule"`
	AutoBook *service.AutoBookResult `json:"auto_book,omitempty"`
}

type ListRecurringSchedulesResponse struct {
	Schedules []*RecurringSchedule `json:"schedules"`
}

type RunAutoBookingRequest struct {
	// CoachID limits the pass to one coach; empty runs every schedule.
	CoachID *uuid.UUID `json:"coach_id,omitempty"`
}

type BookingActionRequest struct {
	BookingID uuid.UUID `json:"booking_id"`
	ActorID   uuid.UUID `json:"actor_id"`
}

func ptr[T any](v T) *T { return &v }
