package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/model"
)

type AvailabilityRepository interface {
	// Активные недельные правила тренера на один день недели по времени начала.
	ListActiveRules(ctx context.Context, coachID uuid.UUID, dayOfWeek int) ([]model.WeeklyAvailabilityRule, error)
	// Все недельные правила тренера.
	ListRules(ctx context.Context, coachID uuid.UUID) ([]model.WeeklyAvailabilityRule, error)
	GetRule(ctx context.Context, id uuid.UUID) (*model.WeeklyAvailabilityRule, error)
	SaveRule(ctx context.Context, rule *model.WeeklyAvailabilityRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	// Удаляет все правила тренера и вставляет rules вместо них.
	ReplaceRules(ctx context.Context, coachID uuid.UUID, rules []model.WeeklyAvailabilityRule) error

	// Исключение для (coach, date); nil, если его нет.
	FindOverride(ctx context.Context, coachID uuid.UUID, date time.Time) (*model.DateOverride, error)
	GetOverride(ctx context.Context, id uuid.UUID) (*model.DateOverride, error)
	CreateOverride(ctx context.Context, o *model.DateOverride) error
	UpdateOverride(ctx context.Context, o *model.DateOverride) error
	DeleteOverride(ctx context.Context, id uuid.UUID) error
	// Исключения тренера в [from, to], при необходимости одного вида.
	ListOverrides(ctx context.Context, coachID uuid.UUID, from, to time.Time, kind model.DateOverrideKind) ([]model.DateOverride, error)
}

type GormAvailabilityRepository struct {
	db *gorm.DB
}

func NewGormAvailabilityRepository(db *gorm.DB) *GormAvailabilityRepository {
	return &GormAvailabilityRepository{db: db}
}

func (r *GormAvailabilityRepository) ListActiveRules(
	ctx context.Context,
	coachID uuid.UUID,
	dayOfWeek int,
) ([]model.WeeklyAvailabilityRule, error) {
	var rules []model.WeeklyAvailabilityRule
	err := r.db.WithContext(ctx).
		Where("coach_id = ? AND day_of_week = ? AND is_active = ?", coachID, dayOfWeek, true).
		Order("start_time ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *GormAvailabilityRepository) ListRules(ctx context.Context, coachID uuid.UUID) ([]model.WeeklyAvailabilityRule, error) {
	var rules []model.WeeklyAvailabilityRule
	err := r.db.WithContext(ctx).
		Where("coach_id = ?", coachID).
		Order("day_of_week ASC, start_time ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *GormAvailabilityRepository) GetRule(ctx context.Context, id uuid.UUID) (*model.WeeklyAvailabilityRule, error) {
	var rule model.WeeklyAvailabilityRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *GormAvailabilityRepository) SaveRule(ctx context.Context, rule *model.WeeklyAvailabilityRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *GormAvailabilityRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.WeeklyAvailabilityRule{}, "id = ?", id).Error
}

func (r *GormAvailabilityRepository) ReplaceRules(
	ctx context.Context,
	coachID uuid.UUID,
	rules []model.WeeklyAvailabilityRule,
) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("coach_id = ?", coachID).Delete(&model.WeeklyAvailabilityRule{}).Error; err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}
	return db.Create(&rules).Error
}

func (r *GormAvailabilityRepository) FindOverride(
	ctx context.Context,
	coachID uuid.UUID,
	date time.Time,
) (*model.DateOverride, error) {
	var o model.DateOverride
	err := r.db.WithContext(ctx).
		Where("coach_id = ? AND date = ?", coachID, model.DateValue(date)).
		Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormAvailabilityRepository) GetOverride(ctx context.Context, id uuid.UUID) (*model.DateOverride, error) {
	var o model.DateOverride
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormAvailabilityRepository) CreateOverride(ctx context.Context, o *model.DateOverride) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *GormAvailabilityRepository) UpdateOverride(ctx context.Context, o *model.DateOverride) error {
	// Колонки перечислены явно, чтобы пустое окно (заблокированная дата) записалось как NULL.
	return r.db.WithContext(ctx).
		Model(&model.DateOverride{}).
		Where("id = ?", o.ID).
		Select("kind", "start_time", "end_time", "reason", "updated_at").
		Updates(o).Error
}

func (r *GormAvailabilityRepository) DeleteOverride(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.DateOverride{}, "id = ?", id).Error
}

func (r *GormAvailabilityRepository) ListOverrides(
	ctx context.Context,
	coachID uuid.UUID,
	from, to time.Time,
	kind model.DateOverrideKind,
) ([]model.DateOverride, error) {
	q := r.db.WithContext(ctx).
		Where("coach_id = ?", coachID).
		Where("date >= ? AND date <= ?", model.DateValue(from), model.DateValue(to))
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}

	var overrides []model.DateOverride
	if err := q.Order("date ASC").Find(&overrides).Error; err != nil {
		return nil, err
	}
	return overrides, nil
}
