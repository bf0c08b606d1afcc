package grpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/coaching-platform/internal/calendar"
	"github.com/Leganyst/coaching-platform/internal/service"
)

func parseWeekday(field, value string) (int, error) {
	w, err := calendar.ParseWeekday(value)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "%s: %v", field, err)
	}
	return int(w), nil
}

func parseClock(field, value string) (time.Duration, error) {
	d, err := calendar.ParseClock(value)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "%s: %v", field, err)
	}
	return d, nil
}

func parseOptionalClock(field, value string) (*time.Duration, error) {
	if value == "" {
		return nil, nil
	}
	d, err := parseClock(field, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func weeklyRuleInput(r WeeklyRule) (service.WeeklyRuleInput, error) {
	var in service.WeeklyRuleInput
	var err error
	if in.DayOfWeek, err = parseWeekday("day_of_week", r.DayOfWeek); err != nil {
		return in, err
	}
	if in.StartTime, err = parseClock("start_time", r.StartTime); err != nil {
		return in, err
	}
	if in.EndTime, err = parseClock("end_time", r.EndTime); err != nil {
		return in, err
	}
	in.ID = r.ID
	in.IsActive = r.IsActive
	return in, nil
}

func overrideInput(req *DateOverrideRequest) (service.DateOverrideInput, error) {
	in := service.DateOverrideInput{Kind: req.Kind, Reason: req.Reason}
	var err error
	if in.StartTime, err = parseOptionalClock("start_time", req.StartTime); err != nil {
		return in, err
	}
	if in.EndTime, err = parseOptionalClock("end_time", req.EndTime); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Server) ListWeeklyRules(ctx context.Context, req *CoachRequest) (*WeeklyRulesResponse, error) {
	rules, err := s.availability.ListWeeklyRules(ctx, req.CoachID)
	if err != nil {
		return nil, s.fail("list weekly rules", err)
	}
	return &WeeklyRulesResponse{Rules: weeklyRulesOf(rules)}, nil
}

func (s *Server) ReplaceWeeklyRules(ctx context.Context, req *WeeklyRulesRequest) (*WeeklyRulesResponse, error) {
	inputs := make([]service.WeeklyRuleInput, 0, len(req.Rules))
	for _, r := range req.Rules {
		in, err := weeklyRuleInput(r)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	rules, err := s.availability.ReplaceWeeklyRules(ctx, req.CoachID, inputs)
	if err != nil {
		return nil, s.fail("replace weekly rules", err)
	}
	return &WeeklyRulesResponse{Rules: weeklyRulesOf(rules)}, nil
}

func (s *Server) DeleteWeeklyRule(ctx context.Context, req *ResourceRef) (*DeleteResponse, error) {
	if err := s.availability.DeleteWeeklyRule(ctx, req.CoachID, req.ID); err != nil {
		return nil, s.fail("delete weekly rule", err)
	}
	return &DeleteResponse{Deleted: 1}, nil
}

func (s *Server) CreateDateOverride(ctx context.Context, req *DateOverrideRequest) (*DateOverride, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	in, err := overrideInput(req)
	if err != nil {
		return nil, err
	}
	o, err := s.availability.CreateDateOverride(ctx, req.CoachID, date, in)
	if err != nil {
		return nil, s.fail("create date override", err)
	}
	return dateOverrideOf(o), nil
}

func (s *Server) UpdateDateOverride(ctx context.Context, req *DateOverrideRequest) (*DateOverride, error) {
	in, err := overrideInput(req)
	if err != nil {
		return nil, err
	}
	o, err := s.availability.UpdateDateOverride(ctx, req.CoachID, req.OverrideID, in)
	if err != nil {
		return nil, s.fail("update date override", err)
	}
	return dateOverrideOf(o), nil
}

func (s *Server) DeleteDateOverride(ctx context.Context, req *ResourceRef) (*DeleteResponse, error) {
	if err := s.availability.DeleteDateOverride(ctx, req.CoachID, req.ID); err != nil {
		return nil, s.fail("delete date override", err)
	}
	return &DeleteResponse{Deleted: 1}, nil
}

func (s *Server) CreateDateOverrideRange(ctx context.Context, req *DateOverrideRequest) (*DateOverrideRangeResponse, error) {
	from, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}
	in, err := overrideInput(req)
	if err != nil {
		return nil, err
	}
	res, err := s.availability.CreateDateOverrideRange(ctx, req.CoachID, from, to, in)
	if err != nil {
		return nil, s.fail("create date override range", err)
	}
	out := &DateOverrideRangeResponse{
		Created: dateOverridesOf(res.Created),
		Skipped: make([]string, 0, len(res.Skipped)),
	}
	for _, d := range res.Skipped {
		out.Skipped = append(out.Skipped, d.Format(dateLayout))
	}
	return out, nil
}

func (s *Server) ListDateOverrides(ctx context.Context, req *DateOverrideRequest) (*ListDateOverridesResponse, error) {
	from, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}
	list, err := s.availability.ListDateOverrides(ctx, req.CoachID, from, to, req.Kind)
	if err != nil {
		return nil, s.fail("list date overrides", err)
	}
	return &ListDateOverridesResponse{Overrides: dateOverridesOf(list)}, nil
}

func (s *Server) RegisterCustomer(ctx context.Context, req *service.RegisterCustomerRequest) (*Account, error) {
	a, err := s.packages.RegisterCustomer(ctx, *req)
	if err != nil {
		return nil, s.fail("register customer", err)
	}
	return accountOf(a), nil
}

func (s *Server) GetAccount(ctx context.Context, req *CustomerRequest) (*Account, error) {
	a, err := s.packages.GetAccount(ctx, req.CustomerID)
	if err != nil {
		return nil, s.fail("get account", err)
	}
	return accountOf(a), nil
}

func (s *Server) TopUpCredits(ctx context.Context, req *TopUpRequest) (*TopUpResponse, error) {
	a, promoted, err := s.packages.TopUpCredits(ctx, req.CoachID, req.CustomerID, req.Amount)
	if err != nil {
		return nil, s.fail("top up credits", err)
	}
	return &TopUpResponse{Account: accountOf(a), Promoted: promoted}, nil
}

func (s *Server) CreatePackage(ctx context.Context, req *PackageRequest) (*Package, error) {
	days := make([]int, 0, len(req.ValidDays))
	for _, d := range req.ValidDays {
		w, err := parseWeekday("valid_days", d)
		if err != nil {
			return nil, err
		}
		days = append(days, w)
	}
	p, err := s.packages.CreatePackage(ctx, service.PackageRequest{
		CoachID:          req.CoachID,
		Name:             req.Name,
		Description:      req.Description,
		CreditsPerPeriod: req.CreditsPerPeriod,
		IsUnlimited:      req.IsUnlimited,
		Price:            req.Price,
		Currency:         req.Currency,
		PeriodType:       req.PeriodType,
		AutoRenew:        req.AutoRenew,
		ValidDays:        days,
	})
	if err != nil {
		return nil, s.fail("create package", err)
	}
	return packageOf(p), nil
}

func (s *Server) ListPackages(ctx context.Context, req *ListPackagesRequest) (*ListPackagesResponse, error) {
	list, err := s.packages.ListPackages(ctx, req.CoachID, req.ActiveOnly)
	if err != nil {
		return nil, s.fail("list packages", err)
	}
	out := &ListPackagesResponse{Packages: make([]*Package, 0, len(list))}
	for i := range list {
		out.Packages = append(out.Packages, packageOf(&list[i]))
	}
	return out, nil
}

func (s *Server) CreateSubscription(ctx context.Context, req *SubscribeRequest) (*SubscriptionResponse, error) {
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	res, err := s.packages.CreateSubscription(ctx, service.SubscribeRequest{
		CoachID:    req.CoachID,
		PackageID:  req.PackageID,
		CustomerID: req.CustomerID,
		StartDate:  start,
	})
	return s.subscriptionResponse("create subscription", res, err)
}

func (s *Server) CancelSubscription(ctx context.Context, req *SubscriptionActionRequest) (*SubscriptionResponse, error) {
	res, err := s.packages.CancelSubscription(ctx, req.CoachID, req.SubscriptionID, req.Reason)
	return s.subscriptionResponse("cancel subscription", res, err)
}

func (s *Server) GrantSubscriptionCredits(ctx context.Context, req *SubscriptionActionRequest) (*SubscriptionResponse, error) {
	res, err := s.packages.GrantSubscriptionCredits(ctx, req.SubscriptionID, req.Amount)
	return s.subscriptionResponse("grant subscription credits", res, err)
}

func (s *Server) subscriptionResponse(op string, res *service.SubscriptionResult, err error) (*SubscriptionResponse, error) {
	if err != nil {
		return nil, s.fail(op, err)
	}
	return &SubscriptionResponse{Subscription: subscriptionOf(res.Subscription), Promoted: res.Promoted}, nil
}

func (s *Server) CreateRecurringSchedule(ctx context.Context, req *RecurringScheduleRequest) (*RecurringScheduleResponse, error) {
	dow, err := parseWeekday("day_of_week", req.DayOfWeek)
	if err != nil {
		return nil, err
	}
	start, err := parseClock("start_time", req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClock("end_time", req.EndTime)
	if err != nil {
		return nil, err
	}
	res, err := s.packages.CreateRecurringSchedule(ctx, service.ScheduleRequest{
		CoachID:         req.CoachID,
		SubscriptionID:  req.SubscriptionID,
		DayOfWeek:       dow,
		StartTime:       start,
		EndTime:         end,
		AutoBookEnabled: req.AutoBookEnabled,
		BookWeeksAhead:  req.BookWeeksAhead,
	})
	if err != nil {
		return nil, s.fail("create recurring schedule", err)
	}
	return &RecurringScheduleResponse{Schedule: scheduleOf(res.Schedule), AutoBook: res.AutoBook}, nil
}

func (s *Server) ListRecurringSchedules(ctx context.Context, req *CoachRequest) (*ListRecurringSchedulesResponse, error) {
	list, err := s.packages.ListRecurringSchedules(ctx, req.CoachID)
	if err != nil {
		return nil, s.fail("list recurring schedules", err)
	}
	out := &ListRecurringSchedulesResponse{Schedules: make([]*RecurringSchedule, 0, len(list))}
	for i := range list {
		out.Schedules = append(out.Schedules, scheduleOf(&list[i]))
	}
	return out, nil
}

func (s *Server) DeleteRecurringSchedule(ctx context.Context, req *ResourceRef) (*DeleteResponse, error) {
	if err := s.packages.DeleteRecurringSchedule(ctx, req.CoachID, req.ID); err != nil {
		return nil, s.fail("delete recurring schedule", err)
	}
	return &DeleteResponse{Deleted: 1}, nil
}

func (s *Server) RunAutoBooking(ctx context.Context, req *RunAutoBookingRequest) (*service.AutoBookResult, error) {
	res, err := s.packages.RunAutoBooking(ctx, req.CoachID)
	if err != nil {
		return nil, s.fail("auto booking", err)
	}
	return res, nil
}

func (s *Server) ConfirmBooking(ctx context.Context, req *BookingActionRequest) (*BookingResponse, error) {
	b, err := s.scheduling.ConfirmBooking(ctx, req.BookingID, req.ActorID)
	if err != nil {
		return nil, s.fail("confirm booking", err)
	}
	return &BookingResponse{Booking: bookingOf(b)}, nil
}

func (s *Server) RescheduleBooking(ctx context.Context, req *service.RescheduleRequest) (*BookingResponse, error) {
	b, err := s.scheduling.RescheduleBooking(ctx, *req)
	if err != nil {
		return nil, s.fail("reschedule booking", err)
	}
	return &BookingResponse{Booking: bookingOf(b)}, nil
}

func (s *Server) DeleteBooking(ctx context.Context, req *BookingActionRequest) (*DeleteResponse, error) {
	n, err := s.scheduling.DeleteBooking(ctx, req.BookingID, req.ActorID)
	if err != nil {
		return nil, s.fail("delete booking", err)
	}
	return &DeleteResponse{Deleted: n}, nil
}

func (s *Server) ListSeries(ctx context.Context, req *BookingActionRequest) (*ListBookingsResponse, error) {
	list, err := s.scheduling.ListSeries(ctx, req.BookingID, req.ActorID)
	if err != nil {
		return nil, s.fail("list series", err)
	}
	return &ListBookingsResponse{Bookings: bookingsOf(list), Total: len(list), Page: 1}, nil
}
