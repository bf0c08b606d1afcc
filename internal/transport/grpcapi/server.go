package grpcapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/coaching-platform/internal/calendar"
	"github.com/Leganyst/coaching-platform/internal/logging"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/service"
)

const ServiceName = "coaching.scheduling.v1.Scheduling"

// SchedulingServer is the set of unary methods served under ServiceName.
type SchedulingServer interface {
	ResolveAvailability(context.Context, *CoachDateRequest) (*service.AvailabilityResult, error)
	ListSlots(context.Context, *ListSlotsRequest) (*ListSlotsResponse, error)
	CreateBooking(context.Context, *service.BookingRequest) (*BookingResponse, error)
	CancelBooking(context.Context, *service.CancelRequest) (*CancelBookingResponse, error)
	ListBookings(context.Context, *service.BookingQuery) (*ListBookingsResponse, error)
	CreateAssignments(context.Context, *CreateAssignmentsRequest) (*CreateAssignmentsResponse, error)
	AcceptAssignment(context.Context, *AssignmentActionRequest) (*AssignmentResponse, error)
	DeclineAssignment(context.Context, *AssignmentActionRequest) (*AssignmentResponse, error)
	CancelAssignment(context.Context, *AssignmentActionRequest) (*AssignmentResponse, error)
	RunDailyAssignmentTransition(context.Context, *DailyTransitionRequest) (*service.TransitionResult, error)
	PromoteCreditsForCustomer(context.Context, *CustomerRequest) (*PromoteResponse, error)

	ConfirmBooking(context.Context, *BookingActionRequest) (*BookingResponse, error)
	RescheduleBooking(context.Context, *service.RescheduleRequest) (*BookingResponse, error)
	DeleteBooking(context.Context, *BookingActionRequest) (*DeleteResponse, error)
	ListSeries(context.Context, *BookingActionRequest) (*ListBookingsResponse, error)

	ListWeeklyRules(context.Context, *CoachRequest) (*WeeklyRulesResponse, error)
	ReplaceWeeklyRules(context.Context, *WeeklyRulesRequest) (*WeeklyRulesResponse, error)
	DeleteWeeklyRule(context.Context, *ResourceRef) (*DeleteResponse, error)
	CreateDateOverride(context.Context, *DateOverrideRequest) (*DateOverride, error)
	UpdateDateOverride(context.Context, *DateOverrideRequest) (*DateOverride, error)
	DeleteDateOverride(context.Context, *ResourceRef) (*DeleteResponse, error)
	CreateDateOverrideRange(context.Context, *DateOverrideRequest) (*DateOverrideRangeResponse, error)
	ListDateOverrides(context.Context, *DateOverrideRequest) (*ListDateOverridesResponse, error)

	RegisterCustomer(context.Context, *service.RegisterCustomerRequest) (*Account, error)
	GetAccount(context.Context, *CustomerRequest) (*Account, error)
	TopUpCredits(context.Context, *TopUpRequest) (*TopUpResponse, error)
	CreatePackage(context.Context, *PackageRequest) (*Package, error)
	ListPackages(context.Context, *ListPackagesRequest) (*ListPackagesResponse, error)
	CreateSubscription(context.Context, *SubscribeRequest) (*SubscriptionResponse, error)
	CancelSubscription(context.Context, *SubscriptionActionRequest) (*SubscriptionResponse, error)
	GrantSubscriptionCredits(context.Context, *SubscriptionActionRequest) (*SubscriptionResponse, error)
	CreateRecurringSchedule(context.Context, *RecurringScheduleRequest) (*RecurringScheduleResponse, error)
	ListRecurringSchedules(context.Context, *CoachRequest) (*ListRecurringSchedulesResponse, error)
	DeleteRecurringSchedule(context.Context, *ResourceRef) (*DeleteResponse, error)
	RunAutoBooking(context.Context, *RunAutoBookingRequest) (*service.AutoBookResult, error)
}

// Services groups what the server dispatches to.
type Services struct {
	Scheduling   *service.SchedulingService
	Assignments  *service.AssignmentService
	Availability *service.AvailabilityService
	Packages     *service.PackageService
}

type Server struct {
	scheduling   *service.SchedulingService
	assignments  *service.AssignmentService
	availability *service.AvailabilityService
	packages     *service.PackageService
	log          *zap.Logger
	now          func() time.Time
}

func NewServer(svc Services, log *zap.Logger) *Server {
	return &Server{
		scheduling:   svc.Scheduling,
		assignments:  svc.Assignments,
		availability: svc.Availability,
		packages:     svc.Packages,
		log:          logging.OrNop(log).Named("grpc"),
		now:          time.Now,
	}
}

// Register adds the scheduling service to s.
func Register(s grpc.ServiceRegistrar, srv SchedulingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ResolveAvailability", SchedulingServer.ResolveAvailability),
		unary("ListSlots", SchedulingServer.ListSlots),
		unary("CreateBooking", SchedulingServer.CreateBooking),
		unary("CancelBooking", SchedulingServer.CancelBooking),
		unary("ListBookings", SchedulingServer.ListBookings),
		unary("CreateAssignments", SchedulingServer.CreateAssignments),
		unary("AcceptAssignment", SchedulingServer.AcceptAssignment),
		unary("DeclineAssignment", SchedulingServer.DeclineAssignment),
		unary("CancelAssignment", SchedulingServer.CancelAssignment),
		unary("RunDailyAssignmentTransition", SchedulingServer.RunDailyAssignmentTransition),
		unary("PromoteCreditsForCustomer", SchedulingServer.PromoteCreditsForCustomer),
		unary("ConfirmBooking", SchedulingServer.ConfirmBooking),
		unary("RescheduleBooking", SchedulingServer.RescheduleBooking),
		unary("DeleteBooking", SchedulingServer.DeleteBooking),
		unary("ListSeries", SchedulingServer.ListSeries),
		unary("ListWeeklyRules", SchedulingServer.ListWeeklyRules),
		unary("ReplaceWeeklyRules", SchedulingServer.ReplaceWeeklyRules),
		unary("DeleteWeeklyRule", SchedulingServer.DeleteWeeklyRule),
		unary("CreateDateOverride", SchedulingServer.CreateDateOverride),
		unary("UpdateDateOverride", SchedulingServer.UpdateDateOverride),
		unary("DeleteDateOverride", SchedulingServer.DeleteDateOverride),
		unary("CreateDateOverrideRange", SchedulingServer.CreateDateOverrideRange),
		unary("ListDateOverrides", SchedulingServer.ListDateOverrides),
		unary("RegisterCustomer", SchedulingServer.RegisterCustomer),
		unary("GetAccount", SchedulingServer.GetAccount),
		unary("TopUpCredits", SchedulingServer.TopUpCredits),
		unary("CreatePackage", SchedulingServer.CreatePackage),
		unary("ListPackages", SchedulingServer.ListPackages),
		unary("CreateSubscription", SchedulingServer.CreateSubscription),
		unary("CancelSubscription", SchedulingServer.CancelSubscription),
		unary("GrantSubscriptionCredits", SchedulingServer.GrantSubscriptionCredits),
		unary("CreateRecurringSchedule", SchedulingServer.CreateRecurringSchedule),
		unary("ListRecurringSchedules", SchedulingServer.ListRecurringSchedules),
		unary("DeleteRecurringSchedule", SchedulingServer.DeleteRecurringSchedule),
		unary("RunAutoBooking", SchedulingServer.RunAutoBooking),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "coaching/scheduling/v1/scheduling.json",
}

// FullMethod returns the path clients invoke for method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](name string, call func(SchedulingServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
			}
			handler := func(ctx context.Context, req any) (any, error) {
				resp, err := call(srv.(SchedulingServer), ctx, req.(*Req))
				if err != nil {
					return nil, err
				}
				return resp, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// fail converts err to a status, logging infrastructure errors with their
// original text.
func (s *Server) fail(op string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.log.Error(op+" failed", zap.Error(err))
	}
	return st
}

func parseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s: expected YYYY-MM-DD, got %q", field, value)
	}
	return d, nil
}

func (s *Server) ResolveAvailability(ctx context.Context, req *CoachDateRequest) (*service.AvailabilityResult, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	res, err := s.scheduling.ResolveAvailability(ctx, req.CoachID, date)
	if err != nil {
		return nil, s.fail("resolve availability", err)
	}
	return res, nil
}

func (s *Server) ListSlots(ctx context.Context, req *ListSlotsRequest) (*ListSlotsResponse, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	minutes := req.DurationMinutes
	if minutes == 0 {
		minutes = s.scheduling.DefaultSlotMinutes()
	}
	slots, err := s.scheduling.ListSlots(ctx, req.CoachID, date, minutes)
	if err != nil {
		return nil, s.fail("list slots", err)
	}
	if slots == nil {
		slots = []time.Time{}
	}
	return &ListSlotsResponse{Slots: slots}, nil
}

func (s *Server) CreateBooking(ctx context.Context, req *service.BookingRequest) (*BookingResponse, error) {
	res, err := s.scheduling.CreateBooking(ctx, *req)
	if err != nil {
		return nil, s.fail("create booking", err)
	}
	return &BookingResponse{
		Booking:   bookingOf(res.Booking),
		Instances: bookingsOf(res.Instances),
		Skipped:   res.Skipped,
	}, nil
}

func (s *Server) CancelBooking(ctx context.Context, req *service.CancelRequest) (*CancelBookingResponse, error) {
	res, err := s.scheduling.CancelBooking(ctx, *req)
	if err != nil {
		return nil, s.fail("cancel booking", err)
	}
	return &CancelBookingResponse{Booking: bookingOf(res.Booking), Refunded: res.Refunded, Promoted: res.Promoted}, nil
}

func (s *Server) ListBookings(ctx context.Context, req *service.BookingQuery) (*ListBookingsResponse, error) {
	page, err := s.scheduling.ListBookings(ctx, *req)
	if err != nil {
		return nil, s.fail("list bookings", err)
	}
	return &ListBookingsResponse{
		Bookings: bookingsOf(page.Items),
		Total:    page.Total,
		Page:     page.Page,
		HasNext:  page.HasNext,
	}, nil
}

func (s *Server) CreateAssignments(ctx context.Context, req *CreateAssignmentsRequest) (*CreateAssignmentsResponse, error) {
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	var end *time.Time
	if req.EndDate != "" {
		d, err := parseDate("end_date", req.EndDate)
		if err != nil {
			return nil, err
		}
		end = &d
	}

	res, err := s.assignments.CreateAssignments(ctx, service.AssignmentRequest{
		PrimaryCoachID:    req.PrimaryCoachID,
		SubstituteCoachID: req.SubstituteCoachID,
		CustomerIDs:       req.CustomerIDs,
		StartDate:         start,
		EndDate:           end,
		Reason:            req.Reason,
		Permissions:       req.Permissions,
	})
	if err != nil {
		return nil, s.fail("create assignments", err)
	}
	return &CreateAssignmentsResponse{Created: assignmentsOf(res.Created), Rejected: res.Rejected}, nil
}

func (s *Server) AcceptAssignment(ctx context.Context, req *AssignmentActionRequest) (*AssignmentResponse, error) {
	a, err := s.assignments.AcceptAssignment(ctx, req.AssignmentID, req.ActorID)
	return s.assignmentResponse("accept assignment", req, a, err)
}

func (s *Server) DeclineAssignment(ctx context.Context, req *AssignmentActionRequest) (*AssignmentResponse, error) {
	a, err := s.assignments.DeclineAssignment(ctx, req.AssignmentID, req.ActorID, req.Reason)
	return s.assignmentResponse("decline assignment", req, a, err)
}

func (s *Server) CancelAssignment(ctx context.Context, req *AssignmentActionRequest) (*AssignmentResponse, error) {
	a, err := s.assignments.CancelAssignment(ctx, req.AssignmentID, req.ActorID, req.Reason)
	return s.assignmentResponse("cancel assignment", req, a, err)
}

func (s *Server) RunDailyAssignmentTransition(ctx context.Context, req *DailyTransitionRequest) (*service.TransitionResult, error) {
	today := calendar.DateOf(s.now())
	if req.Today != "" {
		d, err := parseDate("today", req.Today)
		if err != nil {
			return nil, err
		}
		today = d
	}
	res, err := s.assignments.RunDailyAssignmentTransition(ctx, today)
	if err != nil {
		return nil, s.fail("daily assignment transition", err)
	}
	return res, nil
}

func (s *Server) PromoteCreditsForCustomer(ctx context.Context, req *CustomerRequest) (*PromoteResponse, error) {
	n, err := s.scheduling.PromoteCreditsForCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, s.fail("promote credits", err)
	}
	return &PromoteResponse{Promoted: n}, nil
}

func (s *Server) assignmentResponse(op string, req *AssignmentActionRequest, a *model.CoachAssignment, err error) (*AssignmentResponse, error) {
	if err != nil {
		return nil, s.fail(op, err)
	}
	role := service.RoleOf(a, req.ActorID)
	return &AssignmentResponse{
		Assignment:     assignmentOf(a),
		AllowedActions: service.AllowedActions(a, role),
	}, nil
}

var _ SchedulingServer = (*Server)(nil)
