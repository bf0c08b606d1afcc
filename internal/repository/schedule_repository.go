package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/model"
)

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.RecurringSchedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.RecurringSchedule, error)
	// ListByCoach возвращает повторяющиеся расписания тренера.
	ListByCoach(ctx context.Context, coachID uuid.UUID) ([]model.RecurringSchedule, error)
	// ListAutoBookable возвращает активные расписания с автозаписью для одного тренера или всех.
	ListAutoBookable(ctx context.Context, coachID *uuid.UUID) ([]model.RecurringSchedule, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormScheduleRepository struct {
	db *gorm.DB
}

func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

func (r *GormScheduleRepository) Create(ctx context.Context, schedule *model.RecurringSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *GormScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RecurringSchedule, error) {
	var s model.RecurringSchedule
	if err := r.db.WithContext(ctx).Preload("Subscription").First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormScheduleRepository) ListByCoach(ctx context.Context, coachID uuid.UUID) ([]model.RecurringSchedule, error) {
	var schedules []model.RecurringSchedule
	err := r.db.WithContext(ctx).
		Where("coach_id = ?", coachID).
		Order("day_of_week ASC, start_time ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *GormScheduleRepository) ListAutoBookable(ctx context.Context, coachID *uuid.UUID) ([]model.RecurringSchedule, error) {
	q := r.db.WithContext(ctx).
		Preload("Subscription").
		Where("is_active = ? AND auto_book_enabled = ?", true, true)
	if coachID != nil {
		q = q.Where("coach_id = ?", *coachID)
	}

	var schedules []model.RecurringSchedule
	if err := q.Order("created_at ASC").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *GormScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.RecurringSchedule{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
