package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Leganyst/coaching-platform/internal/calendar"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/repository"
)

// Recurrence repeats a personal event on the given weekdays (0 = Monday)
// through Until inclusive.
type Recurrence struct {
	Weekdays []int     `json:"weekdays" validate:"required,min=1,dive,min=0,max=6"`
	Until    time.Time `json:"until" validate:"required"`
}

type BookingRequest struct {
	CoachID    uuid.UUID           `json:"coach_id" validate:"required"`
	CustomerID *uuid.UUID          `json:"customer_id,omitempty"`
	ActorID    uuid.UUID           `json:"actor_id" validate:"required"`
	Start      time.Time           `json:"start" validate:"required"`
	End        time.Time           `json:"end" validate:"required,gtfield=Start"`
	EventType  model.EventType     `json:"event_type" validate:"required,oneof=customer_session personal_event"`
	Status     model.BookingStatus `json:"status,omitempty" validate:"omitempty,oneof=confirmed pending"`
	Title      string              `json:"title" validate:"max=255"`
	Recurrence *Recurrence         `json:"recurrence,omitempty"`
}

// BookingResult is the created booking plus, for a series, its instances
// and the dates skipped because of conflicts.
type BookingResult struct {
	Booking   *model.Booking       `json:"booking"`
	Instances []model.Booking      `json:"instances,omitempty"`
	Skipped   []calendar.TimeRange `json:"skipped,omitempty"`
}

type CancelRequest struct {
	BookingID uuid.UUID `json:"booking_id" validate:"required"`
	ActorID   uuid.UUID `json:"actor_id" validate:"required"`
	Reason    string    `json:"reason" validate:"max=1000"`
}

type CancelResult struct {
	Booking  *model.Booking `json:"booking"`
	Refunded bool           `json:"refunded"`
	Promoted int            `json:"promoted"`
}

type RescheduleRequest struct {
	BookingID uuid.UUID `json:"booking_id" validate:"required"`
	ActorID   uuid.UUID `json:"actor_id" validate:"required"`
	Start     time.Time `json:"start" validate:"required"`
	End       time.Time `json:"end" validate:"required,gtfield=Start"`
}

type BookingQuery struct {
	CoachID    uuid.UUID           `json:"coach_id" validate:"required"`
	CustomerID *uuid.UUID          `json:"customer_id,omitempty"`
	From       time.Time           `json:"from" validate:"required"`
	To         time.Time           `json:"to" validate:"required,gtfield=From"`
	Status     model.BookingStatus `json:"status,omitempty" validate:"omitempty,oneof=confirmed pending pending_credits cancelled"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
}

// SchedulingService is the entry point for availability queries and
// booking operations. Every check-then-write runs under the coach's lock.
type SchedulingService struct {
	deps     Deps
	log      *zap.Logger
	resolver *AvailabilityResolver
}

func NewSchedulingService(deps Deps) *SchedulingService {
	deps = deps.withDefaults()
	return &SchedulingService{
		deps:     deps,
		log:      deps.Logger.Named("scheduling"),
		resolver: NewAvailabilityResolver(deps.Store.Availability),
	}
}

// DefaultSlotMinutes is the slot length used when a caller gives none.
func (s *SchedulingService) DefaultSlotMinutes() int {
	return s.deps.Policy.DefaultSlotMinutes
}

func (s *SchedulingService) ResolveAvailability(ctx context.Context, coachID uuid.UUID, date time.Time) (*AvailabilityResult, error) {
	return s.resolver.ResolveWindows(ctx, coachID, date)
}

func (s *SchedulingService) IsAvailable(ctx context.Context, coachID uuid.UUID, at time.Time) (*AvailabilityCheck, error) {
	return s.resolver.IsAvailable(ctx, coachID, at)
}

// ListSlots returns bookable start times on date for sessions of
// durationMinutes.
func (s *SchedulingService) ListSlots(ctx context.Context, coachID uuid.UUID, date time.Time, durationMinutes int) ([]time.Time, error) {
	if durationMinutes <= 0 {
		return nil, invalid("duration_minutes", "must be greater than 0")
	}
	res, err := s.resolver.ResolveWindows(ctx, coachID, date)
	if err != nil {
		return nil, err
	}
	return calendar.GenerateSlots(res.Windows, time.Duration(durationMinutes)*time.Minute)
}

func (s *SchedulingService) CreateBooking(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	now := s.deps.now()
	if !req.Start.After(now) {
		return nil, invalid("start", "must be in the future")
	}
	if req.Status == "" {
		req.Status = model.BookingStatusConfirmed
	}

	switch req.EventType {
	case model.EventTypePersonalEvent:
		if req.CustomerID != nil {
			return nil, invalid("customer_id", "must be empty for a personal event")
		}
		if req.ActorID != req.CoachID {
			return nil, ErrForbidden
		}
		if req.Recurrence != nil && calendar.DateOf(req.Recurrence.Until).Before(calendar.DateOf(req.Start)) {
			return nil, invalid("recurrence.until", "must not be before start")
		}
	case model.EventTypeCustomerSession:
		if req.CustomerID == nil {
			return nil, invalid("customer_id", "is required")
		}
		if req.Recurrence != nil {
			return nil, invalid("recurrence", "only personal events repeat")
		}
		if req.ActorID != req.CoachID && req.ActorID != *req.CustomerID {
			return nil, ErrForbidden
		}
	}

	log := s.log.With(
		zap.String("coach_id", req.CoachID.String()),
		zap.String("event_type", string(req.EventType)),
		zap.Time("start", req.Start),
	)

	var result *BookingResult
	err := s.deps.locked(ctx, coachKey(req.CoachID), func(tx *repository.Store) error {
		var err error
		if req.EventType == model.EventTypeCustomerSession {
			result, err = s.createSession(ctx, tx, req)
		} else {
			result, err = s.createPersonalEvent(ctx, tx, req)
		}
		return err
	})
	if err != nil {
		logRejection(log, "booking rejected", err)
		return nil, err
	}

	log.Info("booking created",
		zap.String("booking_id", result.Booking.ID.String()),
		zap.Int("instances", len(result.Instances)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (s *SchedulingService) createSession(ctx context.Context, tx *repository.Store, req BookingRequest) (*BookingResult, error) {
	customerID := *req.CustomerID
	if err := s.checkCustomerOf(ctx, tx, req.CoachID, customerID, req.Start); err != nil {
		return nil, err
	}
	if err := NewAvailabilityResolver(tx.Availability).Admit(ctx, req.CoachID, req.Start, req.End); err != nil {
		return nil, err
	}
	if err := NewConflictDetector(tx.Bookings).Check(ctx, req.CoachID, req.Start, req.End, nil); err != nil {
		return nil, err
	}
	led, err := NewCreditLedger(tx, s.deps.Policy.RefundGrace).Admit(ctx, customerID, req.Start)
	if err != nil {
		return nil, err
	}

	b := &model.Booking{
		CoachID:        req.CoachID,
		CustomerID:     ptr(customerID),
		StartTime:      req.Start.UTC(),
		EndTime:        req.End.UTC(),
		Status:         req.Status,
		EventType:      model.EventTypeCustomerSession,
		Title:          req.Title,
		SubscriptionID: led.SubscriptionID,
	}
	if err := tx.Bookings.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	err = audit(ctx, tx, auditEntry{
		Type:       model.AuditBookingCreated,
		ActorID:    ptr(req.ActorID),
		CustomerID: ptr(customerID),
		BookingID:  ptr(b.ID),
		Details:    map[string]any{"ledger": led.Kind, "status": b.Status},
	})
	if err != nil {
		return nil, err
	}
	return &BookingResult{Booking: b}, nil
}

// checkCustomerOf accepts the customer's own coach and a substitute holding
// an active assignment with booking rights on day.
func (s *SchedulingService) checkCustomerOf(ctx context.Context, tx *repository.Store, coachID, customerID uuid.UUID, day time.Time) error {
	account, err := tx.Accounts.GetByCustomerID(ctx, customerID)
	if err != nil {
		return notFound(err, "customer account")
	}
	if account.CoachID == coachID {
		return nil
	}
	cover, err := tx.Assignments.FindActiveCovering(ctx, customerID, &coachID, day)
	if err != nil {
		return fmt.Errorf("find covering assignment: %w", err)
	}
	if cover == nil || !cover.CanBookSessions {
		return fmt.Errorf("customer: %w", ErrNotFound)
	}
	return nil
}

func (s *SchedulingService) createPersonalEvent(ctx context.Context, tx *repository.Store, req BookingRequest) (*BookingResult, error) {
	detector := NewConflictDetector(tx.Bookings)
	if err := detector.Check(ctx, req.CoachID, req.Start, req.End, nil); err != nil {
		return nil, err
	}

	parent := &model.Booking{
		CoachID:   req.CoachID,
		StartTime: req.Start.UTC(),
		EndTime:   req.End.UTC(),
		Status:    req.Status,
		EventType: model.EventTypePersonalEvent,
		Title:     req.Title,
	}
	if req.Recurrence != nil {
		parent.IsRecurring = true
		parent.RecurringDays = datatypes.JSONSlice[int](req.Recurrence.Weekdays)
		parent.RecurringEndDate = model.DatePtr(&req.Recurrence.Until)
	}
	if err := tx.Bookings.Create(ctx, parent); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	result := &BookingResult{Booking: parent}
	if req.Recurrence != nil {
		if err := s.expandSeries(ctx, tx, detector, parent, req.Recurrence, result); err != nil {
			return nil, err
		}
	}

	err := audit(ctx, tx, auditEntry{
		Type:      model.AuditBookingCreated,
		ActorID:   ptr(req.ActorID),
		BookingID: ptr(parent.ID),
		Details:   map[string]any{"instances": len(result.Instances), "skipped": len(result.Skipped)},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// expandSeries creates the instances after parent. A conflicting date is
// reported in result.Skipped and does not fail the series.
func (s *SchedulingService) expandSeries(
	ctx context.Context,
	tx *repository.Store,
	detector *ConflictDetector,
	parent *model.Booking,
	rec *Recurrence,
	result *BookingResult,
) error {
	weekdays := make([]calendar.Weekday, 0, len(rec.Weekdays))
	for _, d := range rec.Weekdays {
		weekdays = append(weekdays, calendar.Weekday(d))
	}
	occurrences, err := calendar.ExpandWeekdaySeries(calendar.WeekdaySeries{
		First:    parent.Range(),
		Weekdays: weekdays,
		Until:    rec.Until,
	})
	if err != nil {
		return invalid("recurrence", err.Error())
	}

	for _, occ := range occurrences {
		taken, err := detector.HasConflict(ctx, parent.CoachID, occ.Start, occ.End, nil)
		if err != nil {
			return err
		}
		if taken {
			result.Skipped = append(result.Skipped, occ)
			continue
		}
		inst := model.Booking{
			CoachID:       parent.CoachID,
			StartTime:     occ.Start,
			EndTime:       occ.End,
			Status:        parent.Status,
			EventType:     model.EventTypePersonalEvent,
			Title:         parent.Title,
			IsRecurring:   true,
			ParentEventID: ptr(parent.ID),
		}
		if err := tx.Bookings.Create(ctx, &inst); err != nil {
			return fmt.Errorf("create series instance: %w", err)
		}
		result.Instances = append(result.Instances, inst)
	}
	return nil
}

// CancelBooking cancels a booking on behalf of its coach or customer. The
// credit goes back to the ledger that paid when the session starts after
// the refund grace window; freed credit then promotes pending bookings.
func (s *SchedulingService) CancelBooking(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	current, err := s.deps.Store.Bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, notFound(err, "booking")
	}
	log := s.log.With(zap.String("booking_id", req.BookingID.String()), zap.String("actor_id", req.ActorID.String()))

	res := &CancelResult{}
	now := s.deps.now()
	err = s.deps.locked(ctx, coachKey(current.CoachID), func(tx *repository.Store) error {
		b, err := tx.Bookings.GetForUpdate(ctx, req.BookingID)
		if err != nil {
			return notFound(err, "booking")
		}
		if !isParty(b, req.ActorID) {
			return fmt.Errorf("booking: %w", ErrNotFound)
		}
		if b.Status == model.BookingStatusCancelled {
			return &StateError{Entity: "booking", Status: string(b.Status), Action: "cancel"}
		}
		paid := b.Status != model.BookingStatusPendingCredits

		err = tx.Bookings.UpdateStatus(ctx, b.ID, model.BookingStatusCancelled, &repository.Cancellation{
			At:     now,
			By:     req.ActorID,
			Reason: req.Reason,
		})
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}

		ledger := NewCreditLedger(tx, s.deps.Policy.RefundGrace)
		if b.IsCustomerSession() && paid && !b.Refunded && ledger.RefundEligible(b.StartTime, now) {
			led, err := ledger.LedgerOf(ctx, b)
			if err != nil {
				return err
			}
			if err := ledger.Refund(ctx, led, 1); err != nil {
				return err
			}
			if err := tx.Bookings.MarkRefunded(ctx, b.ID); err != nil {
				return fmt.Errorf("mark refunded: %w", err)
			}
			res.Refunded = true
		}

		return audit(ctx, tx, auditEntry{
			Type:       model.AuditBookingCancelled,
			ActorID:    ptr(req.ActorID),
			CustomerID: b.CustomerID,
			BookingID:  ptr(b.ID),
			Details:    map[string]any{"refunded": res.Refunded, "reason": req.Reason},
		})
	})
	if err != nil {
		logRejection(log, "cancel rejected", err)
		return nil, err
	}

	if res.Refunded && current.CustomerID != nil {
		n, err := s.PromoteCreditsForCustomer(ctx, *current.CustomerID)
		if err != nil {
			log.Error("promote after refund", zap.Error(err))
		}
		res.Promoted = n
	}

	if res.Booking, err = s.deps.Store.Bookings.GetByID(ctx, req.BookingID); err != nil {
		return nil, notFound(err, "booking")
	}
	log.Info("booking cancelled", zap.Bool("refunded", res.Refunded), zap.Int("promoted", res.Promoted))
	return res, nil
}

// ConfirmBooking moves a Pending booking to Confirmed. Only the coach may.
func (s *SchedulingService) ConfirmBooking(ctx context.Context, bookingID, actorID uuid.UUID) (*model.Booking, error) {
	current, err := s.deps.Store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking")
	}

	err = s.deps.locked(ctx, coachKey(current.CoachID), func(tx *repository.Store) error {
		b, err := tx.Bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			return notFound(err, "booking")
		}
		if err := coachOnly(b, actorID); err != nil {
			return err
		}
		if b.Status != model.BookingStatusPending {
			return &StateError{Entity: "booking", Status: string(b.Status), Action: "confirm"}
		}
		if err := tx.Bookings.UpdateStatus(ctx, b.ID, model.BookingStatusConfirmed, nil); err != nil {
			return fmt.Errorf("confirm booking: %w", err)
		}
		return audit(ctx, tx, auditEntry{
			Type:       model.AuditBookingConfirmed,
			ActorID:    ptr(actorID),
			CustomerID: b.CustomerID,
			BookingID:  ptr(b.ID),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.getBooking(ctx, bookingID)
}

// RescheduleBooking moves an active booking. The booking's own interval
// does not conflict with the new one.
func (s *SchedulingService) RescheduleBooking(ctx context.Context, req RescheduleRequest) (*model.Booking, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !req.Start.After(s.deps.now()) {
		return nil, invalid("start", "must be in the future")
	}
	current, err := s.deps.Store.Bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, notFound(err, "booking")
	}

	err = s.deps.locked(ctx, coachKey(current.CoachID), func(tx *repository.Store) error {
		b, err := tx.Bookings.GetForUpdate(ctx, req.BookingID)
		if err != nil {
			return notFound(err, "booking")
		}
		if !isParty(b, req.ActorID) {
			return fmt.Errorf("booking: %w", ErrNotFound)
		}
		if !b.IsActive() {
			return &StateError{Entity: "booking", Status: string(b.Status), Action: "reschedule"}
		}
		if b.IsCustomerSession() {
			if err := NewAvailabilityResolver(tx.Availability).Admit(ctx, b.CoachID, req.Start, req.End); err != nil {
				return err
			}
		}
		if err := NewConflictDetector(tx.Bookings).Check(ctx, b.CoachID, req.Start, req.End, ptr(b.ID)); err != nil {
			return err
		}
		if err := tx.Bookings.Reschedule(ctx, b.ID, req.Start, req.End); err != nil {
			return fmt.Errorf("reschedule booking: %w", err)
		}
		return nil
	})
	if err != nil {
		logRejection(s.log.With(zap.String("booking_id", req.BookingID.String())), "reschedule rejected", err)
		return nil, err
	}
	return s.getBooking(ctx, req.BookingID)
}

// DeleteBooking removes a booking and, for a series parent, every instance
// linked to it. Active customer sessions must be cancelled first so their
// credit is settled.
func (s *SchedulingService) DeleteBooking(ctx context.Context, bookingID, actorID uuid.UUID) (int64, error) {
	current, err := s.deps.Store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return 0, notFound(err, "booking")
	}

	var deleted int64
	err = s.deps.locked(ctx, coachKey(current.CoachID), func(tx *repository.Store) error {
		b, err := tx.Bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			return notFound(err, "booking")
		}
		if err := coachOnly(b, actorID); err != nil {
			return err
		}
		if b.IsCustomerSession() && b.IsActive() {
			return &StateError{Entity: "booking", Status: string(b.Status), Action: "delete"}
		}
		if deleted, err = tx.Bookings.DeleteWithSeries(ctx, b.ID); err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		return audit(ctx, tx, auditEntry{
			Type:       model.AuditBookingDeleted,
			ActorID:    ptr(actorID),
			CustomerID: b.CustomerID,
			BookingID:  ptr(b.ID),
			Details:    map[string]any{"rows": deleted, "series": b.IsSeriesParent()},
		})
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("booking deleted", zap.String("booking_id", bookingID.String()), zap.Int64("rows", deleted))
	return deleted, nil
}

// ListSeries returns the instances of a recurring series, earliest first.
// Either party of the parent booking may list them.
func (s *SchedulingService) ListSeries(ctx context.Context, parentID, actorID uuid.UUID) ([]model.Booking, error) {
	parent, err := s.getBooking(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !isParty(parent, actorID) {
		return nil, fmt.Errorf("booking: %w", ErrNotFound)
	}
	if !parent.IsSeriesParent() {
		return []model.Booking{}, nil
	}
	instances, err := s.deps.Store.Bookings.ListSeries(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	return instances, nil
}

func (s *SchedulingService) ListBookings(ctx context.Context, q BookingQuery) (*calendar.Page[model.Booking], error) {
	if err := validateStruct(q); err != nil {
		return nil, err
	}
	page, size, offset := calendar.NormalizePage(q.Page, q.PageSize)
	items, total, err := s.deps.Store.Bookings.ListByCoachAndRange(ctx, repository.BookingFilter{
		CoachID:    q.CoachID,
		CustomerID: q.CustomerID,
		From:       q.From,
		To:         q.To,
		Status:     q.Status,
	}, size, offset)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	p := calendar.PageOf(items, total, page, size)
	return &p, nil
}

// PromoteCreditsForCustomer confirms the customer's PendingCredits bookings
// earliest first, one credit each, and stops at the first booking that
// cannot be paid. A booking whose interval has since been taken is left
// pending and skipped. Sessions that already started are left as they are.
func (s *SchedulingService) PromoteCreditsForCustomer(ctx context.Context, customerID uuid.UUID) (int, error) {
	unlock := s.deps.Locks.Lock(customerKey(customerID))
	defer unlock()

	pending, err := s.deps.Store.Bookings.ListPendingCredits(ctx, customerID)
	if err != nil {
		return 0, fmt.Errorf("list pending bookings: %w", err)
	}

	now := s.deps.now()
	promoted := 0
	for i := range pending {
		if !pending[i].StartTime.After(now) {
			continue
		}
		var exhausted, done bool
		err := s.deps.locked(ctx, coachKey(pending[i].CoachID), func(tx *repository.Store) error {
			b, err := tx.Bookings.GetForUpdate(ctx, pending[i].ID)
			if err != nil {
				if isRecordNotFound(err) {
					return nil
				}
				return fmt.Errorf("get booking: %w", err)
			}
			if b.Status != model.BookingStatusPendingCredits {
				return nil
			}
			taken, err := NewConflictDetector(tx.Bookings).HasConflict(ctx, b.CoachID, b.StartTime, b.EndTime, ptr(b.ID))
			if err != nil {
				return err
			}
			if taken {
				return nil
			}

			led, err := NewCreditLedger(tx, s.deps.Policy.RefundGrace).AdmitPending(ctx, b)
			var admission *AdmissionError
			if errors.As(err, &admission) {
				exhausted = true
				return nil
			}
			if err != nil {
				return err
			}
			if err := tx.Bookings.Promote(ctx, b.ID, led.SubscriptionID); err != nil {
				return fmt.Errorf("promote booking: %w", err)
			}
			done = true
			return audit(ctx, tx, auditEntry{
				Type:       model.AuditBookingPromoted,
				CustomerID: ptr(customerID),
				BookingID:  ptr(b.ID),
				Details:    map[string]any{"ledger": led.Kind},
			})
		})
		if err != nil {
			return promoted, err
		}
		if exhausted {
			break
		}
		if done {
			promoted++
		}
	}

	if promoted > 0 {
		s.log.Info("pending bookings promoted",
			zap.String("customer_id", customerID.String()),
			zap.Int("count", promoted),
		)
	}
	return promoted, nil
}

func (s *SchedulingService) getBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b, err := s.deps.Store.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "booking")
	}
	return b, nil
}

// isParty reports whether actor is the booking's coach or customer.
func isParty(b *model.Booking, actor uuid.UUID) bool {
	return b.CoachID == actor || (b.CustomerID != nil && *b.CustomerID == actor)
}

func coachOnly(b *model.Booking, actor uuid.UUID) error {
	if b.CoachID == actor {
		return nil
	}
	if isParty(b, actor) {
		return ErrForbidden
	}
	return fmt.Errorf("booking: %w", ErrNotFound)
}
