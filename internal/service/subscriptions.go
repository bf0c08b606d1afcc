package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/calendar"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/repository"
)

type RegisterCustomerRequest struct {
	CustomerID     *uuid.UUID `json:"customer_id,omitempty"`
	CoachID        uuid.UUID  `json:"coach_id" validate:"required"`
	DisplayName    string     `json:"display_name" validate:"max=255"`
	InitialCredits int        `json:"initial_credits" validate:"min=0"`
}

type PackageRequest struct {
	CoachID          uuid.UUID        `json:"coach_id" validate:"required"`
	Name             string           `json:"name" validate:"required,max=100"`
	Description      string           `json:"description"`
	CreditsPerPeriod int              `json:"credits_per_period" validate:"min=0"`
	IsUnlimited      bool             `json:"is_unlimited"`
	Price            decimal.Decimal  `json:"price"`
	Currency         string           `json:"currency" validate:"required,len=3"`
	PeriodType       model.PeriodType `json:"period_type" validate:"required,oneof=weekly monthly quarterly yearly one_time"`
	AutoRenew        bool             `json:"auto_renew"`
	ValidDays        []int            `json:"valid_days" validate:"omitempty,dive,min=0,max=6"`
}

type SubscribeRequest struct {
	CoachID    uuid.UUID `json:"coach_id" validate:"required"`
	PackageID  uuid.UUID `json:"package_id" validate:"required"`
	CustomerID uuid.UUID `json:"customer_id" validate:"required"`
	StartDate  time.Time `json:"start_date" validate:"required"`
}

type SubscriptionResult struct {
	Subscription *model.PackageSubscription `json:"subscription"`
	Promoted     int                        `json:"promoted"`
}

type ScheduleRequest struct {
	CoachID         uuid.UUID     `json:"coach_id" validate:"required"`
	SubscriptionID  uuid.UUID     `json:"subscription_id" validate:"required"`
	DayOfWeek       int           `json:"day_of_week" validate:"min=0,max=6"`
	StartTime       time.Duration `json:"start_time" validate:"min=0s,max=24h"`
	EndTime         time.Duration `json:"end_time" validate:"gtfield=StartTime,max=24h"`
	AutoBookEnabled bool          `json:"auto_book_enabled"`
	BookWeeksAhead  int           `json:"book_weeks_ahead" validate:"min=1,max=52"`
}

// AutoBookResult counts what one or more auto-booking passes did.
type AutoBookResult struct {
	Schedules      int                  `json:"schedules"`
	Confirmed      int                  `json:"confirmed"`
	PendingCredits int                  `json:"pending_credits"`
	Existing       int                  `json:"existing"`
	Conflicts      []calendar.TimeRange `json:"conflicts,omitempty"`
}

func (r *AutoBookResult) add(o AutoBookResult) {
	r.Schedules += o.Schedules
	r.Confirmed += o.Confirmed
	r.PendingCredits += o.PendingCredits
	r.Existing += o.Existing
	r.Conflicts = append(r.Conflicts, o.Conflicts...)
}

type ScheduleResult struct {
	Schedule *model.RecurringSchedule `json:"schedule"`
	AutoBook *AutoBookResult          `json:"auto_book,omitempty"`
}

// PackageService manages customer accounts, packages, subscriptions and
// the recurring schedules that auto-book sessions against them.
type PackageService struct {
	deps       Deps
	log        *zap.Logger
	scheduling *SchedulingService
}

func NewPackageService(deps Deps, scheduling *SchedulingService) *PackageService {
	deps = deps.withDefaults()
	return &PackageService{deps: deps, log: deps.Logger.Named("packages"), scheduling: scheduling}
}

func (s *PackageService) RegisterCustomer(ctx context.Context, req RegisterCustomerRequest) (*model.CustomerAccount, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	account := &model.CustomerAccount{
		CoachID:        req.CoachID,
		DisplayName:    req.DisplayName,
		SessionCredits: req.InitialCredits,
		IsActive:       true,
	}
	if req.CustomerID != nil {
		account.CustomerID = *req.CustomerID
	}
	if err := s.deps.Store.Accounts.Create(ctx, account); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid("customer_id", "already registered")
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

func (s *PackageService) GetAccount(ctx context.Context, customerID uuid.UUID) (*model.CustomerAccount, error) {
	account, err := s.deps.Store.Accounts.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, notFound(err, "customer account")
	}
	return account, nil
}

func (s *PackageService) CreatePackage(ctx context.Context, req PackageRequest) (*model.Package, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	vErr := &ValidationError{}
	if !req.IsUnlimited && req.CreditsPerPeriod <= 0 {
		vErr.add("credits_per_period", "must be greater than 0 unless the package is unlimited")
	}
	if req.Price.IsNegative() {
		vErr.add("price", "must not be negative")
	}
	if err := vErr.orNil(); err != nil {
		return nil, err
	}

	pkg := &model.Package{
		CoachID:          req.CoachID,
		Name:             req.Name,
		Description:      req.Description,
		CreditsPerPeriod: req.CreditsPerPeriod,
		IsUnlimited:      req.IsUnlimited,
		Price:            req.Price.Round(2),
		Currency:         req.Currency,
		PeriodType:       req.PeriodType,
		AutoRenew:        req.AutoRenew,
		ValidDays:        datatypes.JSONSlice[int](req.ValidDays),
		IsActive:         true,
	}
	if err := s.deps.Store.Packages.Create(ctx, pkg); err != nil {
		return nil, fmt.Errorf("create package: %w", err)
	}
	return pkg, nil
}

func (s *PackageService) ListPackages(ctx context.Context, coachID uuid.UUID, activeOnly bool) ([]model.Package, error) {
	list, err := s.deps.Store.Packages.ListByCoach(ctx, coachID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	return list, nil
}

// SubscriptionPeriod returns the end date and next renewal date of a
// subscription to pkg starting on start. One-time packages are valid for a
// month and never renew; auto-renewing packages have no end date.
func SubscriptionPeriod(pkg *model.Package, start time.Time) (end, renewal *time.Time) {
	start = calendar.DateOf(start)
	var next time.Time
	switch pkg.PeriodType {
	case model.PeriodWeekly:
		next = start.AddDate(0, 0, 7)
	case model.PeriodQuarterly:
		next = calendar.AddMonths(start, 3)
	case model.PeriodYearly:
		next = calendar.AddMonths(start, 12)
	case model.PeriodOneTime:
		end := calendar.AddMonths(start, 1)
		return &end, nil
	default:
		next = calendar.AddMonths(start, 1)
	}
	if pkg.AutoRenew {
		return nil, &next
	}
	return &next, &next
}

func (s *PackageService) CreateSubscription(ctx context.Context, req SubscribeRequest) (*SubscriptionResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var sub *model.PackageSubscription
	err := s.deps.locked(ctx, customerKey(req.CustomerID), func(tx *repository.Store) error {
		pkg, err := tx.Packages.GetByID(ctx, req.PackageID)
		if err != nil {
			return notFound(err, "package")
		}
		if pkg.CoachID != req.CoachID {
			return fmt.Errorf("package: %w", ErrNotFound)
		}
		if !pkg.IsActive {
			return &StateError{Entity: "package", Status: "inactive", Action: "subscribe to"}
		}
		account, err := tx.Accounts.GetByCustomerID(ctx, req.CustomerID)
		if err != nil {
			return notFound(err, "customer account")
		}
		if account.CoachID != req.CoachID {
			return fmt.Errorf("customer: %w", ErrNotFound)
		}

		allocated := pkg.CreditsPerPeriod
		if pkg.IsUnlimited {
			allocated = model.UnlimitedCredits
		}
		end, renewal := SubscriptionPeriod(pkg, req.StartDate)
		sub = &model.PackageSubscription{
			PackageID:        pkg.ID,
			CustomerID:       req.CustomerID,
			CoachID:          req.CoachID,
			StartDate:        model.DateValue(req.StartDate),
			EndDate:          model.DatePtr(end),
			NextRenewalDate:  model.DatePtr(renewal),
			CreditsAllocated: allocated,
			CreditsRemaining: allocated,
			Status:           model.SubscriptionActive,
		}
		if err := tx.Subscriptions.Create(ctx, sub); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		return audit(ctx, tx, auditEntry{
			Type:       model.AuditSubscriptionChange,
			ActorID:    ptr(req.CoachID),
			CustomerID: ptr(req.CustomerID),
			Details:    map[string]any{"subscription_id": sub.ID, "status": sub.Status, "allocated": allocated},
		})
	})
	if err != nil {
		return nil, err
	}

	return &SubscriptionResult{Subscription: sub, Promoted: s.promote(ctx, req.CustomerID)}, nil
}

func (s *PackageService) CancelSubscription(ctx context.Context, coachID, subscriptionID uuid.UUID, reason string) (*SubscriptionResult, error) {
	current, err := s.deps.Store.Subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, notFound(err, "subscription")
	}
	if current.CoachID != coachID {
		return nil, fmt.Errorf("subscription: %w", ErrNotFound)
	}

	now := s.deps.now()
	err = s.deps.locked(ctx, customerKey(current.CustomerID), func(tx *repository.Store) error {
		sub, err := tx.Subscriptions.GetByID(ctx, subscriptionID)
		if err != nil {
			return notFound(err, "subscription")
		}
		if sub.Status == model.SubscriptionCancelled || sub.Status == model.SubscriptionExpired {
			return &StateError{Entity: "subscription", Status: string(sub.Status), Action: "cancel"}
		}
		if err := tx.Subscriptions.UpdateStatus(ctx, sub.ID, model.SubscriptionCancelled, &now, reason); err != nil {
			return fmt.Errorf("cancel subscription: %w", err)
		}
		return audit(ctx, tx, auditEntry{
			Type:       model.AuditSubscriptionChange,
			ActorID:    ptr(coachID),
			CustomerID: ptr(sub.CustomerID),
			Details:    map[string]any{"subscription_id": sub.ID, "status": model.SubscriptionCancelled, "reason": reason},
		})
	})
	if err != nil {
		return nil, err
	}

	promoted := s.promote(ctx, current.CustomerID)
	sub, err := s.deps.Store.Subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, notFound(err, "subscription")
	}
	return &SubscriptionResult{Subscription: sub, Promoted: promoted}, nil
}

// GrantSubscriptionCredits adds amount to an active subscription's
// allocation, which is what a renewal does, then promotes pending bookings.
func (s *PackageService) GrantSubscriptionCredits(ctx context.Context, subscriptionID uuid.UUID, amount int) (*SubscriptionResult, error) {
	if amount <= 0 {
		return nil, invalid("amount", "must be greater than 0")
	}
	current, err := s.deps.Store.Subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, notFound(err, "subscription")
	}

	err = s.deps.locked(ctx, customerKey(current.CustomerID), func(tx *repository.Store) error {
		sub, err := tx.Subscriptions.GetByID(ctx, subscriptionID)
		if err != nil {
			return notFound(err, "subscription")
		}
		if sub.Status != model.SubscriptionActive {
			return &StateError{Entity: "subscription", Status: string(sub.Status), Action: "grant credits to"}
		}
		if sub.IsUnlimited() {
			return nil
		}
		if err := tx.Subscriptions.Grant(ctx, sub.ID, amount); err != nil {
			return fmt.Errorf("grant credits: %w", err)
		}
		return audit(ctx, tx, auditEntry{
			Type:       model.AuditCreditsAdded,
			CustomerID: ptr(sub.CustomerID),
			Details:    map[string]any{"subscription_id": sub.ID, "amount": amount},
		})
	})
	if err != nil {
		return nil, err
	}

	promoted := s.promote(ctx, current.CustomerID)
	sub, err := s.deps.Store.Subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, notFound(err, "subscription")
	}
	return &SubscriptionResult{Subscription: sub, Promoted: promoted}, nil
}

// TopUpCredits adds amount to the customer's account counter.
func (s *PackageService) TopUpCredits(ctx context.Context, coachID, customerID uuid.UUID, amount int) (*model.CustomerAccount, int, error) {
	if amount <= 0 {
		return nil, 0, invalid("amount", "must be greater than 0")
	}

	err := s.deps.locked(ctx, customerKey(customerID), func(tx *repository.Store) error {
		account, err := tx.Accounts.GetByCustomerID(ctx, customerID)
		if err != nil {
			return notFound(err, "customer account")
		}
		if account.CoachID != coachID {
			return fmt.Errorf("customer: %w", ErrNotFound)
		}
		if err := tx.Accounts.Credit(ctx, customerID, amount); err != nil {
			return fmt.Errorf("credit account: %w", err)
		}
		return audit(ctx, tx, auditEntry{
			Type:       model.AuditCreditsAdded,
			ActorID:    ptr(coachID),
			CustomerID: ptr(customerID),
			Details:    map[string]any{"amount": amount},
		})
	})
	if err != nil {
		return nil, 0, err
	}

	promoted := s.promote(ctx, customerID)
	account, err := s.GetAccount(ctx, customerID)
	if err != nil {
		return nil, 0, err
	}
	return account, promoted, nil
}

// promote runs after credit is added. The credit is already committed, so a
// failure here is logged and left to the next job run.
func (s *PackageService) promote(ctx context.Context, customerID uuid.UUID) int {
	n, err := s.scheduling.PromoteCreditsForCustomer(ctx, customerID)
	if err != nil {
		s.log.Error("promote pending bookings", zap.String("customer_id", customerID.String()), zap.Error(err))
	}
	return n
}

func (s *PackageService) CreateRecurringSchedule(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	sub, err := s.deps.Store.Subscriptions.GetByID(ctx, req.SubscriptionID)
	if err != nil {
		return nil, notFound(err, "subscription")
	}
	if sub.CoachID != req.CoachID {
		return nil, fmt.Errorf("subscription: %w", ErrNotFound)
	}
	if sub.Status != model.SubscriptionActive {
		return nil, &StateError{Entity: "subscription", Status: string(sub.Status), Action: "schedule sessions for"}
	}

	schedule := &model.RecurringSchedule{
		SubscriptionID:  sub.ID,
		CustomerID:      sub.CustomerID,
		CoachID:         sub.CoachID,
		DayOfWeek:       req.DayOfWeek,
		StartTime:       model.ClockValue(req.StartTime),
		EndTime:         model.ClockValue(req.EndTime),
		AutoBookEnabled: req.AutoBookEnabled,
		BookWeeksAhead:  req.BookWeeksAhead,
		IsActive:        true,
	}
	if err := s.deps.Store.Schedules.Create(ctx, schedule); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	res := &ScheduleResult{Schedule: schedule}
	if schedule.AutoBookEnabled {
		booked, err := s.autoBook(ctx, schedule)
		if err != nil {
			return nil, err
		}
		res.AutoBook = &booked
	}
	return res, nil
}

func (s *PackageService) ListRecurringSchedules(ctx context.Context, coachID uuid.UUID) ([]model.RecurringSchedule, error) {
	list, err := s.deps.Store.Schedules.ListByCoach(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return list, nil
}

// DeleteRecurringSchedule removes the template. Sessions it already booked
// stay on the calendar.
func (s *PackageService) DeleteRecurringSchedule(ctx context.Context, coachID, scheduleID uuid.UUID) error {
	schedule, err := s.deps.Store.Schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return notFound(err, "schedule")
	}
	if schedule.CoachID != coachID {
		return fmt.Errorf("schedule: %w", ErrNotFound)
	}
	if err := s.deps.Store.Schedules.Delete(ctx, scheduleID); err != nil {
		return notFound(err, "schedule")
	}
	return nil
}

// RunAutoBooking expands every active auto-booking schedule, for one coach
// or for all of them when coachID is nil. A failing schedule is logged and
// does not stop the others.
func (s *PackageService) RunAutoBooking(ctx context.Context, coachID *uuid.UUID) (*AutoBookResult, error) {
	schedules, err := s.deps.Store.Schedules.ListAutoBookable(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	total := &AutoBookResult{}
	for i := range schedules {
		res, err := s.autoBook(ctx, &schedules[i])
		if err != nil {
			s.log.Error("auto-booking failed", zap.String("schedule_id", schedules[i].ID.String()), zap.Error(err))
			continue
		}
		total.add(res)
	}
	return total, nil
}

// autoBook materializes one schedule over today .. today+weeks. Existing
// sessions at the same start are left alone, so reruns are idempotent. An
// occurrence this schedule created and the customer later cancelled is not
// booked again; a cancelled booking from elsewhere does not block it.
func (s *PackageService) autoBook(ctx context.Context, schedule *model.RecurringSchedule) (AutoBookResult, error) {
	res := AutoBookResult{Schedules: 1}
	now := s.deps.now()
	today := calendar.DateOf(now)
	occurrences := calendar.WeeklyOccurrences(
		calendar.Weekday(schedule.DayOfWeek),
		model.Clock(schedule.StartTime),
		model.Clock(schedule.EndTime),
		today,
		today.AddDate(0, 0, 7*schedule.BookWeeksAhead),
	)

	err := s.deps.locked(ctx, coachKey(schedule.CoachID), func(tx *repository.Store) error {
		sub, err := tx.Subscriptions.GetByID(ctx, schedule.SubscriptionID)
		if err != nil {
			return notFound(err, "subscription")
		}
		if sub.Status != model.SubscriptionActive {
			return nil
		}
		detector := NewConflictDetector(tx.Bookings)
		ledger := NewCreditLedger(tx, s.deps.Policy.RefundGrace)
		led := subscriptionLedger(sub)

		for _, occ := range occurrences {
			if !occ.Start.After(now) || !sub.CoversDate(occ.Start) {
				continue
			}
			exists, err := tx.Bookings.ExistsAt(ctx, schedule.CoachID, schedule.CustomerID, occ.Start, schedule.ID)
			if err != nil {
				return fmt.Errorf("check existing booking: %w", err)
			}
			if exists {
				res.Existing++
				continue
			}
			taken, err := detector.HasConflict(ctx, schedule.CoachID, occ.Start, occ.End, nil)
			if err != nil {
				return err
			}
			if taken {
				res.Conflicts = append(res.Conflicts, occ)
				continue
			}

			status := model.BookingStatusPendingCredits
			if led.Unlimited || sub.CreditsRemaining > 0 {
				err := ledger.Debit(ctx, led, 1)
				var admission *AdmissionError
				switch {
				case err == nil:
					status = model.BookingStatusConfirmed
					if !led.Unlimited {
						sub.CreditsRemaining--
					}
				case !errors.As(err, &admission):
					return err
				}
			}

			b := &model.Booking{
				CoachID:             schedule.CoachID,
				CustomerID:          ptr(schedule.CustomerID),
				StartTime:           occ.Start,
				EndTime:             occ.End,
				Status:              status,
				EventType:           model.EventTypeCustomerSession,
				SubscriptionID:      ptr(sub.ID),
				RecurringScheduleID: ptr(schedule.ID),
			}
			if err := tx.Bookings.Create(ctx, b); err != nil {
				return fmt.Errorf("create booking: %w", err)
			}
			if status == model.BookingStatusConfirmed {
				res.Confirmed++
			} else {
				res.PendingCredits++
			}
			err = audit(ctx, tx, auditEntry{
				Type:       model.AuditBookingCreated,
				CustomerID: ptr(schedule.CustomerID),
				BookingID:  ptr(b.ID),
				Details:    map[string]any{"schedule_id": schedule.ID, "status": status},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return AutoBookResult{}, err
	}

	s.log.Debug("auto-booking pass",
		zap.String("schedule_id", schedule.ID.String()),
		zap.Int("confirmed", res.Confirmed),
		zap.Int("pending_credits", res.PendingCredits),
		zap.Int("existing", res.Existing),
		zap.Int("conflicts", len(res.Conflicts)),
	)
	return res, nil
}
