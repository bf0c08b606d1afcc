package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Leganyst/coaching-platform/internal/calendar"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/repository"
)

type AssignmentAction string

const (
	ActionAccept   AssignmentAction = "accept"
	ActionDecline  AssignmentAction = "decline"
	ActionCancel   AssignmentAction = "cancel"
	ActionActivate AssignmentAction = "activate"
	ActionComplete AssignmentAction = "complete"
	ActionRate     AssignmentAction = "rate"
)

// AssignmentRole is the side a party plays in an assignment.
type AssignmentRole string

const (
	RolePrimary    AssignmentRole = "primary_coach"
	RoleSubstitute AssignmentRole = "substitute_coach"
	RoleSystem     AssignmentRole = "system"
)

type assignmentRule struct {
	actor AssignmentRole
	// guard is an extra condition on top of the status.
	guard func(a *model.CoachAssignment) bool
}

func notAccepted(a *model.CoachAssignment) bool { return a.AcceptedAt == nil }
func accepted(a *model.CoachAssignment) bool    { return a.AcceptedAt != nil }
func unrated(a *model.CoachAssignment) bool     { return a.Rating == nil }

// Declined, Cancelled have no outgoing transitions. Completed only accepts
// a rating.
var assignmentTransitions = map[model.AssignmentStatus]map[AssignmentAction]assignmentRule{
	model.AssignmentPending: {
		ActionAccept:   {actor: RoleSubstitute, guard: notAccepted},
		ActionDecline:  {actor: RoleSubstitute, guard: notAccepted},
		ActionCancel:   {actor: RolePrimary},
		ActionActivate: {actor: RoleSystem, guard: accepted},
	},
	model.AssignmentActive: {
		ActionCancel:   {actor: RolePrimary},
		ActionComplete: {actor: RoleSystem},
	},
	model.AssignmentCompleted: {
		ActionRate: {actor: RolePrimary, guard: unrated},
	},
}

// PermittedActor returns who may perform action on a in its current state.
// ok is false when the state does not allow the action at all.
func PermittedActor(a *model.CoachAssignment, action AssignmentAction) (AssignmentRole, bool) {
	rule, ok := assignmentTransitions[a.Status][action]
	if !ok || (rule.guard != nil && !rule.guard(a)) {
		return "", false
	}
	return rule.actor, true
}

// AllowedActions lists what role may do with a right now.
func AllowedActions(a *model.CoachAssignment, role AssignmentRole) []AssignmentAction {
	actions := make([]AssignmentAction, 0)
	for action := range assignmentTransitions[a.Status] {
		if actor, ok := PermittedActor(a, action); ok && actor == role {
			actions = append(actions, action)
		}
	}
	slices.Sort(actions)
	return actions
}

// RoleOf returns the role of actor in a, or "" for an outsider.
func RoleOf(a *model.CoachAssignment, actor uuid.UUID) AssignmentRole {
	switch actor {
	case a.PrimaryCoachID:
		return RolePrimary
	case a.SubstituteCoachID:
		return RoleSubstitute
	}
	return ""
}

// AssignmentView is an assignment together with what the viewer may do.
type AssignmentView struct {
	Assignment     model.CoachAssignment `json:"assignment"`
	Role           AssignmentRole        `json:"role"`
	AllowedActions []AssignmentAction    `json:"allowed_actions"`
}

func viewOf(a model.CoachAssignment, actor uuid.UUID) AssignmentView {
	role := RoleOf(&a, actor)
	return AssignmentView{Assignment: a, Role: role, AllowedActions: AllowedActions(&a, role)}
}

type AssignmentRequest struct {
	PrimaryCoachID    uuid.UUID                    `json:"primary_coach_id" validate:"required"`
	SubstituteCoachID uuid.UUID                    `json:"substitute_coach_id" validate:"required"`
	CustomerIDs       []uuid.UUID                  `json:"customer_ids" validate:"required,min=1,dive,required"`
	StartDate         time.Time                    `json:"start_date" validate:"required"`
	EndDate           *time.Time                   `json:"end_date,omitempty"`
	Reason            string                       `json:"reason" validate:"max=1000"`
	Permissions       *model.AssignmentPermissions `json:"permissions,omitempty"`
}

const (
	RejectOverlap          = "overlap"
	RejectCustomerNotFound = "customer_not_found"
)

type AssignmentRejection struct {
	CustomerID uuid.UUID  `json:"customer_id"`
	Reason     string     `json:"reason"`
	ExistingID *uuid.UUID `json:"existing_assignment_id,omitempty"`
}

// AssignmentBatchResult itemizes a bulk creation. Rows created before an
// infrastructure failure stay created.
type AssignmentBatchResult struct {
	Created  []model.CoachAssignment `json:"created"`
	Rejected []AssignmentRejection   `json:"rejected"`
}

type TransitionResult struct {
	Activated int64 `json:"activated"`
	Completed int64 `json:"completed"`
	Expired   int64 `json:"expired"`
}

// ExpiredReason is recorded on pending assignments cancelled by the daily
// transition because their range passed without an answer.
const ExpiredReason = "expired: not accepted before end date"

type AssignmentService struct {
	deps Deps
	log  *zap.Logger
}

func NewAssignmentService(deps Deps) *AssignmentService {
	deps = deps.withDefaults()
	return &AssignmentService{deps: deps, log: deps.Logger.Named("assignments")}
}

// CreateAssignments creates one pending assignment per customer. Each
// customer is checked and written under its own lock; an overlapping or
// foreign customer is rejected without affecting the others.
func (s *AssignmentService) CreateAssignments(ctx context.Context, req AssignmentRequest) (*AssignmentBatchResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.PrimaryCoachID == req.SubstituteCoachID {
		return nil, invalid("substitute_coach_id", "must differ from primary_coach_id")
	}
	period, err := calendar.NewDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, invalid("end_date", "must not be before start_date")
	}
	perms := model.DefaultAssignmentPermissions()
	if req.Permissions != nil {
		perms = *req.Permissions
	}

	log := s.log.With(
		zap.String("primary_coach_id", req.PrimaryCoachID.String()),
		zap.String("substitute_coach_id", req.SubstituteCoachID.String()),
	)

	res := &AssignmentBatchResult{Created: []model.CoachAssignment{}, Rejected: []AssignmentRejection{}}
	for _, customerID := range req.CustomerIDs {
		var created *model.CoachAssignment
		err := s.deps.locked(ctx, customerKey(customerID), func(tx *repository.Store) error {
			account, err := tx.Accounts.GetByCustomerID(ctx, customerID)
			if err != nil {
				return notFound(err, "customer account")
			}
			if account.CoachID != req.PrimaryCoachID {
				return fmt.Errorf("customer: %w", ErrNotFound)
			}

			open, err := tx.Assignments.ListOpenForCustomer(ctx, customerID)
			if err != nil {
				return fmt.Errorf("list open assignments: %w", err)
			}
			for i := range open {
				if open[i].DateRange().Overlaps(period) {
					return &OverlapError{CustomerID: customerID, ExistingID: open[i].ID}
				}
			}

			a := &model.CoachAssignment{
				PrimaryCoachID:        req.PrimaryCoachID,
				SubstituteCoachID:     req.SubstituteCoachID,
				CustomerID:            customerID,
				StartDate:             model.DateValue(period.Start),
				EndDate:               model.DatePtr(period.End),
				Reason:                req.Reason,
				Status:                model.AssignmentPending,
				AssignmentPermissions: perms,
			}
			if err := tx.Assignments.Create(ctx, a); err != nil {
				return fmt.Errorf("create assignment: %w", err)
			}
			created = a
			return audit(ctx, tx, auditEntry{
				Type:         model.AuditAssignmentCreated,
				ActorID:      ptr(req.PrimaryCoachID),
				CustomerID:   ptr(customerID),
				AssignmentID: ptr(a.ID),
			})
		})

		var overlap *OverlapError
		switch {
		case err == nil:
			res.Created = append(res.Created, *created)
		case errors.As(err, &overlap):
			res.Rejected = append(res.Rejected, AssignmentRejection{
				CustomerID: customerID,
				Reason:     RejectOverlap,
				ExistingID: ptr(overlap.ExistingID),
			})
		case errors.Is(err, ErrNotFound):
			res.Rejected = append(res.Rejected, AssignmentRejection{CustomerID: customerID, Reason: RejectCustomerNotFound})
		default:
			log.Error("assignment batch aborted", zap.String("customer_id", customerID.String()), zap.Error(err))
			return res, err
		}
	}

	log.Info("assignments created", zap.Int("created", len(res.Created)), zap.Int("rejected", len(res.Rejected)))
	return res, nil
}

// AcceptAssignment records the substitute's acceptance. The assignment
// becomes Active at once only when its start date is today or earlier. A
// future-dated assignment stays Pending with AcceptedAt set, and
// RunDailyAssignmentTransition activates it on its start date.
func (s *AssignmentService) AcceptAssignment(ctx context.Context, id, actor uuid.UUID) (*model.CoachAssignment, error) {
	return s.transition(ctx, id, actor, ActionAccept, func(a *model.CoachAssignment, now time.Time) {
		a.AcceptedAt = ptr(now)
		if !model.AsTime(a.StartDate).After(calendar.DateOf(now)) {
			a.Status = model.AssignmentActive
		}
	})
}

func (s *AssignmentService) DeclineAssignment(ctx context.Context, id, actor uuid.UUID, reason string) (*model.CoachAssignment, error) {
	return s.transition(ctx, id, actor, ActionDecline, func(a *model.CoachAssignment, now time.Time) {
		a.Status = model.AssignmentDeclined
		a.DeclinedAt = ptr(now)
		a.DeclineReason = reason
	})
}

func (s *AssignmentService) CancelAssignment(ctx context.Context, id, actor uuid.UUID, reason string) (*model.CoachAssignment, error) {
	return s.transition(ctx, id, actor, ActionCancel, func(a *model.CoachAssignment, now time.Time) {
		a.Status = model.AssignmentCancelled
		a.CancelledAt = ptr(now)
		a.CancelReason = reason
	})
}

// RateAssignment records the primary coach's 1..5 rating of a completed
// assignment.
func (s *AssignmentService) RateAssignment(ctx context.Context, id, actor uuid.UUID, rating int, feedback string) (*model.CoachAssignment, error) {
	if rating < 1 || rating > 5 {
		return nil, invalid("rating", "must be between 1 and 5")
	}
	return s.transition(ctx, id, actor, ActionRate, func(a *model.CoachAssignment, _ time.Time) {
		a.Rating = ptr(rating)
		a.Feedback = feedback
	})
}

func (s *AssignmentService) transition(
	ctx context.Context,
	id, actor uuid.UUID,
	action AssignmentAction,
	apply func(a *model.CoachAssignment, now time.Time),
) (*model.CoachAssignment, error) {
	current, err := s.deps.Store.Assignments.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "assignment")
	}

	var updated *model.CoachAssignment
	err = s.deps.locked(ctx, customerKey(current.CustomerID), func(tx *repository.Store) error {
		a, err := tx.Assignments.GetByID(ctx, id)
		if err != nil {
			return notFound(err, "assignment")
		}
		role := RoleOf(a, actor)
		if role == "" {
			return fmt.Errorf("assignment: %w", ErrNotFound)
		}
		permitted, ok := PermittedActor(a, action)
		if !ok {
			return &StateError{Entity: "assignment", Status: string(a.Status), Action: string(action)}
		}
		if permitted != role {
			return ErrForbidden
		}

		from := a.Status
		apply(a, s.deps.now())
		if err := tx.Assignments.SaveState(ctx, a); err != nil {
			return fmt.Errorf("save assignment: %w", err)
		}
		updated = a
		return audit(ctx, tx, auditEntry{
			Type:         model.AuditAssignmentChanged,
			ActorID:      ptr(actor),
			CustomerID:   ptr(a.CustomerID),
			AssignmentID: ptr(a.ID),
			Details:      map[string]any{"action": action, "from": from, "to": a.Status},
		})
	})
	if err != nil {
		logRejection(s.log.With(zap.String("assignment_id", id.String()), zap.String("action", string(action))), "assignment transition rejected", err)
		return nil, err
	}
	return updated, nil
}

// RunDailyAssignmentTransition activates accepted assignments whose start
// date has come and completes active ones that ended before today. Pending
// assignments that ended before anyone accepted them are cancelled with
// ExpiredReason; open-ended ones stay pending.
func (s *AssignmentService) RunDailyAssignmentTransition(ctx context.Context, today time.Time) (*TransitionResult, error) {
	today = calendar.DateOf(today)
	res := &TransitionResult{}
	err := s.deps.Store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if res.Activated, err = tx.Assignments.ActivateDue(ctx, today); err != nil {
			return fmt.Errorf("activate assignments: %w", err)
		}
		if res.Completed, err = tx.Assignments.CompleteDue(ctx, today, s.deps.now()); err != nil {
			return fmt.Errorf("complete assignments: %w", err)
		}
		if res.Expired, err = tx.Assignments.ExpireUnaccepted(ctx, today, s.deps.now(), ExpiredReason); err != nil {
			return fmt.Errorf("expire assignments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("daily assignment transition",
		zap.Time("today", today),
		zap.Int64("activated", res.Activated),
		zap.Int64("completed", res.Completed),
		zap.Int64("expired", res.Expired),
	)
	return res, nil
}

// CurrentAssignment returns the active assignment covering the customer on
// today, or ErrNotFound.
func (s *AssignmentService) CurrentAssignment(ctx context.Context, customerID uuid.UUID, today time.Time) (*model.CoachAssignment, error) {
	a, err := s.deps.Store.Assignments.FindActiveCovering(ctx, customerID, nil, today)
	if err != nil {
		return nil, fmt.Errorf("find current assignment: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("assignment: %w", ErrNotFound)
	}
	return a, nil
}

func (s *AssignmentService) ListGiven(ctx context.Context, primaryCoachID uuid.UUID, status model.AssignmentStatus, page, size int) (*calendar.Page[AssignmentView], error) {
	list, err := s.deps.Store.Assignments.ListByPrimary(ctx, primaryCoachID, status)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return pageOfViews(list, primaryCoachID, page, size), nil
}

func (s *AssignmentService) ListReceived(ctx context.Context, substituteCoachID uuid.UUID, status model.AssignmentStatus, page, size int) (*calendar.Page[AssignmentView], error) {
	list, err := s.deps.Store.Assignments.ListBySubstitute(ctx, substituteCoachID, status)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return pageOfViews(list, substituteCoachID, page, size), nil
}

// History lists every assignment the primary coach gave to substitute,
// newest first.
func (s *AssignmentService) History(ctx context.Context, primaryCoachID, substituteCoachID uuid.UUID) ([]model.CoachAssignment, error) {
	list, err := s.deps.Store.Assignments.ListByPrimary(ctx, primaryCoachID, "")
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return slices.DeleteFunc(list, func(a model.CoachAssignment) bool {
		return a.SubstituteCoachID != substituteCoachID
	}), nil
}

func pageOfViews(list []model.CoachAssignment, viewer uuid.UUID, page, size int) *calendar.Page[AssignmentView] {
	views := make([]AssignmentView, 0, len(list))
	for _, a := range list {
		views = append(views, viewOf(a, viewer))
	}
	p := calendar.Paginate(views, page, size)
	return &p
}
