package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/coaching-platform/internal/db"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/repository"
)

// testClock is a settable clock for Deps.Now.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now.UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}

// Wednesday 2025-03-05 12:00 UTC; the following Monday is 2025-03-10.
var fixtureNow = time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

func at(day, hour, min int) time.Time {
	return time.Date(2025, 3, day, hour, min, 0, 0, time.UTC)
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	clock *testClock
	deps  Deps

	availability *AvailabilityService
	scheduling   *SchedulingService
	packages     *PackageService
	assignments  *AssignmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.NewSQLiteMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clock := newTestClock(fixtureNow)
	deps := Deps{
		Store: repository.NewStore(gdb),
		Locks: NewKeyedMutex(),
		Now:   clock.Now,
	}.withDefaults()

	scheduling := NewSchedulingService(deps)
	return &fixture{
		t:            t,
		ctx:          context.Background(),
		clock:        clock,
		deps:         deps,
		availability: NewAvailabilityService(deps),
		scheduling:   scheduling,
		packages:     NewPackageService(deps, scheduling),
		assignments:  NewAssignmentService(deps),
	}
}

// weeklyRules replaces the coach's weekly schedule.
func (f *fixture) weeklyRules(coach uuid.UUID, rules ...WeeklyRuleInput) {
	f.t.Helper()
	if _, err := f.availability.ReplaceWeeklyRules(f.ctx, coach, rules); err != nil {
		f.t.Fatalf("replace weekly rules: %v", err)
	}
}

func rule(dow, startHour, endHour int) WeeklyRuleInput {
	return WeeklyRuleInput{
		DayOfWeek: dow,
		StartTime: time.Duration(startHour) * time.Hour,
		EndTime:   time.Duration(endHour) * time.Hour,
		IsActive:  true,
	}
}

func (f *fixture) customer(coach uuid.UUID, credits int) uuid.UUID {
	f.t.Helper()
	acc, err := f.packages.RegisterCustomer(f.ctx, RegisterCustomerRequest{CoachID: coach, InitialCredits: credits})
	if err != nil {
		f.t.Fatalf("register customer: %v", err)
	}
	return acc.CustomerID
}

func (f *fixture) credits(customer uuid.UUID) int {
	f.t.Helper()
	acc, err := f.packages.GetAccount(f.ctx, customer)
	if err != nil {
		f.t.Fatalf("get account: %v", err)
	}
	return acc.SessionCredits
}

func (f *fixture) book(coach, customer uuid.UUID, start, end time.Time) (*BookingResult, error) {
	return f.scheduling.CreateBooking(f.ctx, BookingRequest{
		CoachID:    coach,
		CustomerID: &customer,
		ActorID:    customer,
		Start:      start,
		End:        end,
		EventType:  model.EventTypeCustomerSession,
	})
}

func (f *fixture) mustBook(coach, customer uuid.UUID, start, end time.Time) *model.Booking {
	f.t.Helper()
	res, err := f.book(coach, customer, start, end)
	if err != nil {
		f.t.Fatalf("book %s: %v", start.Format(time.RFC3339), err)
	}
	return res.Booking
}

func (f *fixture) booking(id uuid.UUID) *model.Booking {
	f.t.Helper()
	b, err := f.deps.Store.Bookings.GetByID(f.ctx, id)
	if err != nil {
		f.t.Fatalf("get booking: %v", err)
	}
	return b
}

// pendingBooking inserts a PendingCredits session directly, the way
// auto-booking leaves one when no credit is left.
func (f *fixture) pendingBooking(coach, customer uuid.UUID, start, end time.Time, sub *uuid.UUID) *model.Booking {
	f.t.Helper()
	b := &model.Booking{
		CoachID:        coach,
		CustomerID:     &customer,
		StartTime:      start,
		EndTime:        end,
		Status:         model.BookingStatusPendingCredits,
		EventType:      model.EventTypeCustomerSession,
		SubscriptionID: sub,
	}
	if err := f.deps.Store.Bookings.Create(f.ctx, b); err != nil {
		f.t.Fatalf("create pending booking: %v", err)
	}
	return b
}

func (f *fixture) subscription(id uuid.UUID) *model.PackageSubscription {
	f.t.Helper()
	sub, err := f.deps.Store.Subscriptions.GetByID(f.ctx, id)
	if err != nil {
		f.t.Fatalf("get subscription: %v", err)
	}
	return sub
}
