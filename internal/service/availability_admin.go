package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/calendar"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/repository"
)

// WeeklyRuleInput describes one weekly window; times are offsets from midnight.
type WeeklyRuleInput struct {
	ID        *uuid.UUID    `json:"id,omitempty"`
	DayOfWeek int           `json:"day_of_week" validate:"min=0,max=6"`
	StartTime time.Duration `json:"start_time" validate:"min=0s,max=24h"`
	EndTime   time.Duration `json:"end_time" validate:"gtfield=StartTime,max=24h"`
	IsActive  bool          `json:"is_active"`
}

// DateOverrideInput creates or updates an override. Start and End are
// required for kind=override and must be absent for kind=blocked.
type DateOverrideInput struct {
	Kind      model.DateOverrideKind `json:"kind" validate:"required,oneof=blocked override"`
	StartTime *time.Duration         `json:"start_time,omitempty"`
	EndTime   *time.Duration         `json:"end_time,omitempty"`
	Reason    string                 `json:"reason" validate:"max=255"`
}

// OverrideRangeResult itemizes a bulk override request.
type OverrideRangeResult struct {
	Created []model.DateOverride `json:"created"`
	Skipped []time.Time          `json:"skipped"`
}

// AvailabilityService manages weekly rules and date overrides.
type AvailabilityService struct {
	deps Deps
	log  *zap.Logger
}

func NewAvailabilityService(deps Deps) *AvailabilityService {
	deps = deps.withDefaults()
	return &AvailabilityService{deps: deps, log: deps.Logger.Named("availability")}
}

func (s *AvailabilityService) Resolver() *AvailabilityResolver {
	return NewAvailabilityResolver(s.deps.Store.Availability)
}

func (s *AvailabilityService) ListWeeklyRules(ctx context.Context, coachID uuid.UUID) ([]model.WeeklyAvailabilityRule, error) {
	rules, err := s.deps.Store.Availability.ListRules(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("list weekly rules: %w", err)
	}
	return rules, nil
}

// ReplaceWeeklyRules swaps the coach's whole weekly schedule atomically.
func (s *AvailabilityService) ReplaceWeeklyRules(ctx context.Context, coachID uuid.UUID, inputs []WeeklyRuleInput) ([]model.WeeklyAvailabilityRule, error) {
	vErr := &ValidationError{}
	rules := make([]model.WeeklyAvailabilityRule, 0, len(inputs))
	for i, in := range inputs {
		if err := validateStruct(in); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				for f, msg := range ve.FieldErrors {
					vErr.add(fmt.Sprintf("rules[%d].%s", i, f), msg)
				}
				continue
			}
			return nil, err
		}
		rules = append(rules, model.WeeklyAvailabilityRule{
			CoachID:   coachID,
			DayOfWeek: in.DayOfWeek,
			StartTime: model.ClockValue(in.StartTime),
			EndTime:   model.ClockValue(in.EndTime),
			IsActive:  in.IsActive,
		})
	}
	if err := vErr.orNil(); err != nil {
		return nil, err
	}

	err := s.deps.Store.Transaction(ctx, func(tx *repository.Store) error {
		return tx.Availability.ReplaceRules(ctx, coachID, rules)
	})
	if err != nil {
		return nil, fmt.Errorf("replace weekly rules: %w", err)
	}
	s.log.Info("weekly rules replaced", zap.String("coach_id", coachID.String()), zap.Int("count", len(rules)))
	return rules, nil
}

// UpsertWeeklyRule creates a rule, or updates the one named by in.ID.
func (s *AvailabilityService) UpsertWeeklyRule(ctx context.Context, coachID uuid.UUID, in WeeklyRuleInput) (*model.WeeklyAvailabilityRule, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	rule := &model.WeeklyAvailabilityRule{CoachID: coachID}
	if in.ID != nil {
		existing, err := s.deps.Store.Availability.GetRule(ctx, *in.ID)
		if err != nil {
			return nil, notFound(err, "weekly rule")
		}
		if existing.CoachID != coachID {
			return nil, fmt.Errorf("weekly rule: %w", ErrNotFound)
		}
		rule = existing
	}
	rule.DayOfWeek = in.DayOfWeek
	rule.StartTime = model.ClockValue(in.StartTime)
	rule.EndTime = model.ClockValue(in.EndTime)
	rule.IsActive = in.IsActive

	if err := s.deps.Store.Availability.SaveRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("save weekly rule: %w", err)
	}
	return rule, nil
}

func (s *AvailabilityService) DeleteWeeklyRule(ctx context.Context, coachID, ruleID uuid.UUID) error {
	rule, err := s.deps.Store.Availability.GetRule(ctx, ruleID)
	if err != nil {
		return notFound(err, "weekly rule")
	}
	if rule.CoachID != coachID {
		return fmt.Errorf("weekly rule: %w", ErrNotFound)
	}
	if err := s.deps.Store.Availability.DeleteRule(ctx, ruleID); err != nil {
		return fmt.Errorf("delete weekly rule: %w", err)
	}
	return nil
}

func (s *AvailabilityService) validateOverride(in DateOverrideInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	vErr := &ValidationError{}
	switch in.Kind {
	case model.DateOverrideBlocked:
		if in.StartTime != nil || in.EndTime != nil {
			vErr.add("start_time", "must be empty for a blocked date")
		}
	case model.DateOverrideOverride:
		if in.StartTime == nil {
			vErr.add("start_time", "is required for an override")
		}
		if in.EndTime == nil {
			vErr.add("end_time", "is required for an override")
		}
		if in.StartTime != nil && in.EndTime != nil {
			if *in.StartTime < 0 || *in.EndTime > 24*time.Hour {
				vErr.add("start_time", "must be within the day")
			} else if *in.EndTime <= *in.StartTime {
				vErr.add("end_time", "must be after start_time")
			}
		}
	}
	return vErr.orNil()
}

func applyOverride(o *model.DateOverride, in DateOverrideInput) {
	o.Kind = in.Kind
	o.Reason = in.Reason
	o.StartTime, o.EndTime = nil, nil
	if in.Kind == model.DateOverrideOverride {
		o.StartTime = ptr(model.ClockValue(*in.StartTime))
		o.EndTime = ptr(model.ClockValue(*in.EndTime))
	}
}

// CreateDateOverride adds an override for one date. A date can hold at most
// one override; past dates are rejected.
func (s *AvailabilityService) CreateDateOverride(ctx context.Context, coachID uuid.UUID, date time.Time, in DateOverrideInput) (*model.DateOverride, error) {
	if err := s.validateOverride(in); err != nil {
		return nil, err
	}
	day := calendar.DateOf(date)
	if day.Before(calendar.DateOf(s.deps.now())) {
		return nil, invalid("date", "must not be in the past")
	}

	o := &model.DateOverride{CoachID: coachID, Date: model.DateValue(day)}
	applyOverride(o, in)

	err := s.deps.locked(ctx, coachKey(coachID), func(tx *repository.Store) error {
		existing, err := tx.Availability.FindOverride(ctx, coachID, day)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrOverrideExists
		}
		return tx.Availability.CreateOverride(ctx, o)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrOverrideExists
	}
	if err != nil {
		if errors.Is(err, ErrOverrideExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create date override: %w", err)
	}
	return o, nil
}

func (s *AvailabilityService) UpdateDateOverride(ctx context.Context, coachID, overrideID uuid.UUID, in DateOverrideInput) (*model.DateOverride, error) {
	if err := s.validateOverride(in); err != nil {
		return nil, err
	}
	o, err := s.deps.Store.Availability.GetOverride(ctx, overrideID)
	if err != nil {
		return nil, notFound(err, "date override")
	}
	if o.CoachID != coachID {
		return nil, fmt.Errorf("date override: %w", ErrNotFound)
	}
	applyOverride(o, in)
	if err := s.deps.Store.Availability.UpdateOverride(ctx, o); err != nil {
		return nil, fmt.Errorf("update date override: %w", err)
	}
	return o, nil
}

func (s *AvailabilityService) DeleteDateOverride(ctx context.Context, coachID, overrideID uuid.UUID) error {
	o, err := s.deps.Store.Availability.GetOverride(ctx, overrideID)
	if err != nil {
		return notFound(err, "date override")
	}
	if o.CoachID != coachID {
		return fmt.Errorf("date override: %w", ErrNotFound)
	}
	if err := s.deps.Store.Availability.DeleteOverride(ctx, overrideID); err != nil {
		return fmt.Errorf("delete date override: %w", err)
	}
	return nil
}

// CreateDateOverrideRange applies the same override to every date in
// [from, to]. Dates that already carry an override are skipped and reported.
func (s *AvailabilityService) CreateDateOverrideRange(ctx context.Context, coachID uuid.UUID, from, to time.Time, in DateOverrideInput) (*OverrideRangeResult, error) {
	if err := s.validateOverride(in); err != nil {
		return nil, err
	}
	from, to = calendar.DateOf(from), calendar.DateOf(to)
	if to.Before(from) {
		return nil, invalid("end_date", "must not be before start_date")
	}
	if from.Before(calendar.DateOf(s.deps.now())) {
		return nil, invalid("start_date", "must not be in the past")
	}

	res := &OverrideRangeResult{Created: []model.DateOverride{}, Skipped: []time.Time{}}
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		o, err := s.CreateDateOverride(ctx, coachID, day, in)
		switch {
		case errors.Is(err, ErrOverrideExists):
			res.Skipped = append(res.Skipped, day)
		case err != nil:
			return res, err
		default:
			res.Created = append(res.Created, *o)
		}
	}

	s.log.Info("date override range applied",
		zap.String("coach_id", coachID.String()),
		zap.Int("created", len(res.Created)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

func (s *AvailabilityService) ListDateOverrides(ctx context.Context, coachID uuid.UUID, from, to time.Time, kind model.DateOverrideKind) ([]model.DateOverride, error) {
	if to.Before(from) {
		return nil, invalid("end_date", "must not be before start_date")
	}
	list, err := s.deps.Store.Availability.ListOverrides(ctx, coachID, from, to, kind)
	if err != nil {
		return nil, fmt.Errorf("list date overrides: %w", err)
	}
	return list, nil
}
