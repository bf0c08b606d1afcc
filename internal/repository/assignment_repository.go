package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/model"
)

type AssignmentRepository interface {
	Create(ctx context.Context, a *model.CoachAssignment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.CoachAssignment, error)
	// Сохраняет колонки состояния a.
	SaveState(ctx context.Context, a *model.CoachAssignment) error
	// Замены клиента в статусе pending/active.
	ListOpenForCustomer(ctx context.Context, customerID uuid.UUID) ([]model.CoachAssignment, error)
	ListByPrimary(ctx context.Context, primaryCoachID uuid.UUID, status model.AssignmentStatus) ([]model.CoachAssignment, error)
	ListBySubstitute(ctx context.Context, substituteCoachID uuid.UUID, status model.AssignmentStatus) ([]model.CoachAssignment, error)
	// Активная замена клиента на day; substitute nil — любой заместитель.
	FindActiveCovering(ctx context.Context, customerID uuid.UUID, substituteCoachID *uuid.UUID, day time.Time) (*model.CoachAssignment, error)
	// Принятые pending-замены, у которых наступила дата начала.
	ActivateDue(ctx context.Context, today time.Time) (int64, error)
	// Активные замены, закончившиеся до today.
	CompleteDue(ctx context.Context, today time.Time, at time.Time) (int64, error)
	// Отменяет непринятые pending-замены, закончившиеся до today.
	ExpireUnaccepted(ctx context.Context, today time.Time, at time.Time, reason string) (int64, error)
}

type GormAssignmentRepository struct {
	db *gorm.DB
}

func NewGormAssignmentRepository(db *gorm.DB) *GormAssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

func (r *GormAssignmentRepository) Create(ctx context.Context, a *model.CoachAssignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *GormAssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CoachAssignment, error) {
	var a model.CoachAssignment
	if err := forUpdate(r.db.WithContext(ctx)).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAssignmentRepository) SaveState(ctx context.Context, a *model.CoachAssignment) error {
	return r.db.WithContext(ctx).
		Model(&model.CoachAssignment{}).
		Where("id = ?", a.ID).
		Select(
			"status", "accepted_at", "declined_at", "decline_reason",
			"cancelled_at", "cancel_reason", "completed_at", "rating", "feedback", "updated_at",
		).
		Updates(a).Error
}

func (r *GormAssignmentRepository) ListOpenForCustomer(ctx context.Context, customerID uuid.UUID) ([]model.CoachAssignment, error) {
	var list []model.CoachAssignment
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status IN ?", customerID, model.OpenAssignmentStatuses).
		Order("start_date ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *GormAssignmentRepository) ListByPrimary(
	ctx context.Context,
	primaryCoachID uuid.UUID,
	status model.AssignmentStatus,
) ([]model.CoachAssignment, error) {
	return r.list(ctx, "primary_coach_id = ?", primaryCoachID, status)
}

func (r *GormAssignmentRepository) ListBySubstitute(
	ctx context.Context,
	substituteCoachID uuid.UUID,
	status model.AssignmentStatus,
) ([]model.CoachAssignment, error) {
	return r.list(ctx, "substitute_coach_id = ?", substituteCoachID, status)
}

func (r *GormAssignmentRepository) list(
	ctx context.Context,
	cond string,
	coachID uuid.UUID,
	status model.AssignmentStatus,
) ([]model.CoachAssignment, error) {
	q := r.db.WithContext(ctx).Where(cond, coachID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var list []model.CoachAssignment
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *GormAssignmentRepository) FindActiveCovering(
	ctx context.Context,
	customerID uuid.UUID,
	substituteCoachID *uuid.UUID,
	day time.Time,
) (*model.CoachAssignment, error) {
	d := model.DateValue(day)
	q := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, model.AssignmentActive).
		Where("start_date <= ?", d).
		Where("end_date IS NULL OR end_date >= ?", d)
	if substituteCoachID != nil {
		q = q.Where("substitute_coach_id = ?", *substituteCoachID)
	}

	var list []model.CoachAssignment
	if err := q.Order("start_date DESC").Limit(1).Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (r *GormAssignmentRepository) ActivateDue(ctx context.Context, today time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CoachAssignment{}).
		Where("status = ? AND accepted_at IS NOT NULL AND start_date <= ?", model.AssignmentPending, model.DateValue(today)).
		Update("status", model.AssignmentActive)
	return res.RowsAffected, res.Error
}

func (r *GormAssignmentRepository) CompleteDue(ctx context.Context, today time.Time, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CoachAssignment{}).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", model.AssignmentActive, model.DateValue(today)).
		Updates(map[string]any{
			"status":       model.AssignmentCompleted,
			"completed_at": at.UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *GormAssignmentRepository) ExpireUnaccepted(ctx context.Context, today time.Time, at time.Time, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CoachAssignment{}).
		Where("status = ? AND accepted_at IS NULL AND end_date IS NOT NULL AND end_date < ?", model.AssignmentPending, model.DateValue(today)).
		Updates(map[string]any{
			"status":        model.AssignmentCancelled,
			"cancelled_at":  at.UTC(),
			"cancel_reason": reason,
		})
	return res.RowsAffected, res.Error
}
