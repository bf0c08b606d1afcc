package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Leganyst/coaching-platform/internal/db"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/repository"
	"github.com/Leganyst/coaching-platform/internal/service"
)

// Wednesday; the following Monday is 2025-03-10.
var testNow = time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

type harness struct {
	conn         *grpc.ClientConn
	availability *service.AvailabilityService
	packages     *service.PackageService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	gdb, err := db.NewSQLiteMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	deps := service.Deps{
		Store: repository.NewStore(gdb),
		Locks: service.NewKeyedMutex(),
		Now:   func() time.Time { return testNow },
	}
	scheduling := service.NewSchedulingService(deps)
	svc := Services{
		Scheduling:   scheduling,
		Assignments:  service.NewAssignmentService(deps),
		Availability: service.NewAvailabilityService(deps),
		Packages:     service.NewPackageService(deps, scheduling),
	}

	srv := NewServer(svc, nil)
	srv.now = deps.Now

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryLogging(srv.log)))
	Register(gs, srv)
	go func() { _ = gs.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		gs.Stop()
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &harness{
		conn:         conn,
		availability: svc.Availability,
		packages:     svc.Packages,
	}
}

func (h *harness) call(t *testing.T, method string, req, resp any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.conn.Invoke(ctx, FullMethod(method), req, resp)
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := status.Code(err); got != code {
		t.Fatalf("expected %s, got %s (%v)", code, got, err)
	}
}

func TestScheduling_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	coach := uuid.New()

	if _, err := h.availability.ReplaceWeeklyRules(ctx, coach, []service.WeeklyRuleInput{
		{DayOfWeek: 0, StartTime: 9 * time.Hour, EndTime: 17 * time.Hour, IsActive: true},
	}); err != nil {
		t.Fatalf("weekly rules: %v", err)
	}
	acc, err := h.packages.RegisterCustomer(ctx, service.RegisterCustomerRequest{CoachID: coach, InitialCredits: 1})
	if err != nil {
		t.Fatalf("register customer: %v", err)
	}
	customer := acc.CustomerID

	var slots ListSlotsResponse
	if err := h.call(t, "ListSlots", &ListSlotsRequest{CoachID: coach, Date: "2025-03-10"}, &slots); err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots.Slots) != 8 || !slots.Slots[0].Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 8 hourly slots from 09:00, got %v", slots.Slots)
	}

	var availability service.AvailabilityResult
	if err := h.call(t, "ResolveAvailability", &CoachDateRequest{CoachID: coach, Date: "2025-03-10"}, &availability); err != nil {
		t.Fatalf("resolve availability: %v", err)
	}
	if !availability.Available || availability.Source != service.SourceWeekly {
		t.Fatalf("unexpected availability: %+v", availability)
	}

	book := &service.BookingRequest{
		CoachID:    coach,
		CustomerID: &customer,
		ActorID:    customer,
		Start:      time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		End:        time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC),
		EventType:  model.EventTypeCustomerSession,
	}
	var created BookingResponse
	if err := h.call(t, "CreateBooking", book, &created); err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if created.Booking == nil || created.Booking.Status != model.BookingStatusConfirmed {
		t.Fatalf("unexpected booking: %+v", created.Booking)
	}

	overlapping := *book
	overlapping.Start = time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)
	overlapping.End = time.Date(2025, 3, 10, 11, 30, 0, 0, time.UTC)
	wantCode(t, h.call(t, "CreateBooking", &overlapping, &BookingResponse{}), codes.AlreadyExists)

	outside := *book
	outside.Start = time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)
	outside.End = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	wantCode(t, h.call(t, "CreateBooking", &outside, &BookingResponse{}), codes.FailedPrecondition)

	var cancelled CancelBookingResponse
	if err := h.call(t, "CancelBooking", &service.CancelRequest{BookingID: created.Booking.ID, ActorID: customer}, &cancelled); err != nil {
		t.Fatalf("cancel booking: %v", err)
	}
	if !cancelled.Refunded || cancelled.Booking.Status != model.BookingStatusCancelled {
		t.Fatalf("expected a refunded cancellation, got %+v", cancelled)
	}
	wantCode(t, h.call(t, "CancelBooking", &service.CancelRequest{BookingID: created.Booking.ID, ActorID: customer}, &CancelBookingResponse{}), codes.FailedPrecondition)
	wantCode(t, h.call(t, "CancelBooking", &service.CancelRequest{BookingID: uuid.New(), ActorID: customer}, &CancelBookingResponse{}), codes.NotFound)

	var list ListBookingsResponse
	if err := h.call(t, "ListBookings", &service.BookingQuery{
		CoachID: coach,
		From:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}, &list); err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("expected one booking, got %d", list.Total)
	}
}

func TestScheduling_InvalidArguments(t *testing.T) {
	h := newHarness(t)

	wantCode(t, h.call(t, "ListSlots", &ListSlotsRequest{CoachID: uuid.New(), Date: "10.03.2025"}, &ListSlotsResponse{}), codes.InvalidArgument)
	wantCode(t, h.call(t, "ListSlots", &ListSlotsRequest{CoachID: uuid.New(), Date: "2025-03-10", DurationMinutes: -15}, &ListSlotsResponse{}), codes.InvalidArgument)
	wantCode(t, h.call(t, "CreateBooking", &service.BookingRequest{CoachID: uuid.New()}, &BookingResponse{}), codes.InvalidArgument)
	wantCode(t, h.call(t, "CreateAssignments", &CreateAssignmentsRequest{StartDate: "soon"}, &CreateAssignmentsResponse{}), codes.InvalidArgument)
}

func TestAssignments_OverGRPC(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	primary, substitute := uuid.New(), uuid.New()

	acc, err := h.packages.RegisterCustomer(ctx, service.RegisterCustomerRequest{CoachID: primary})
	if err != nil {
		t.Fatalf("register customer: %v", err)
	}

	var created CreateAssignmentsResponse
	if err := h.call(t, "CreateAssignments", &CreateAssignmentsRequest{
		PrimaryCoachID:    primary,
		SubstituteCoachID: substitute,
		CustomerIDs:       []uuid.UUID{acc.CustomerID, uuid.New()},
		StartDate:         "2025-03-07",
		EndDate:           "2025-03-14",
	}, &created); err != nil {
		t.Fatalf("create assignments: %v", err)
	}
	if len(created.Created) != 1 || len(created.Rejected) != 1 || created.Rejected[0].Reason != service.RejectCustomerNotFound {
		t.Fatalf("unexpected batch result: %+v", created)
	}
	id := created.Created[0].ID
	if created.Created[0].StartDate != "2025-03-07" || created.Created[0].EndDate != "2025-03-14" {
		t.Fatalf("unexpected dates: %+v", created.Created[0])
	}

	wantCode(t, h.call(t, "AcceptAssignment", &AssignmentActionRequest{AssignmentID: id, ActorID: primary}, &AssignmentResponse{}), codes.PermissionDenied)

	var accepted AssignmentResponse
	if err := h.call(t, "AcceptAssignment", &AssignmentActionRequest{AssignmentID: id, ActorID: substitute}, &accepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Assignment.Status != model.AssignmentPending || accepted.Assignment.AcceptedAt == nil {
		t.Fatalf("expected an accepted future assignment to stay pending, got %+v", accepted.Assignment)
	}

	var transition service.TransitionResult
	if err := h.call(t, "RunDailyAssignmentTransition", &DailyTransitionRequest{Today: "2025-03-07"}, &transition); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if transition.Activated != 1 {
		t.Fatalf("expected one activation, got %+v", transition)
	}

	var promoted PromoteResponse
	if err := h.call(t, "PromoteCreditsForCustomer", &CustomerRequest{CustomerID: acc.CustomerID}, &promoted); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.Promoted != 0 {
		t.Fatalf("expected nothing to promote, got %d", promoted.Promoted)
	}
}
