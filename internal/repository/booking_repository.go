package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/model"
)

// BookingFilter сужает ListByCoachAndRange.
type BookingFilter struct {
	CoachID    uuid.UUID
	CustomerID *uuid.UUID
	From, To   time.Time
	Status     model.BookingStatus
}

type BookingRepository interface {
	// Создать новое бронирование.
	Create(ctx context.Context, booking *model.Booking) error
	// Получить бронирование по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Получить бронирование по ID с блокировкой строки, если диалект умеет.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Обновить статус; при отмене сохраняются кто и когда.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus, cancel *Cancellation) error
	// Перенести бронирование на новый интервал.
	Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time) error
	// Отметить, что кредит за бронирование возвращён.
	MarkRefunded(ctx context.Context, id uuid.UUID) error
	// Одним запросом выставить статус и источник оплаты (продвижение).
	Promote(ctx context.Context, id uuid.UUID, subscriptionID *uuid.UUID) error
	// Активные (confirmed/pending) бронирования тренера, пересекающие [from, to).
	ListActiveOverlapping(ctx context.Context, coachID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]model.Booking, error)
	// Есть ли у клиента бронирование у этого тренера с началом в start.
	// Отменённые учитываются, только если их создал scheduleID.
	ExistsAt(ctx context.Context, coachID, customerID uuid.UUID, start time.Time, scheduleID uuid.UUID) (bool, error)
	// Бронирования клиента в PendingCredits, ранние первыми.
	ListPendingCredits(ctx context.Context, customerID uuid.UUID) ([]model.Booking, error)
	// Клиенты, у которых есть хотя бы одно бронирование в PendingCredits.
	ListCustomersWithPendingCredits(ctx context.Context) ([]uuid.UUID, error)
	// Бронирования тренера за период с пагинацией.
	ListByCoachAndRange(ctx context.Context, filter BookingFilter, limit, offset int) ([]model.Booking, int64, error)
	// Экземпляры повторяющейся серии.
	ListSeries(ctx context.Context, parentID uuid.UUID) ([]model.Booking, error)
	// Удалить бронирование вместе со всеми связанными экземплярами.
	DeleteWithSeries(ctx context.Context, id uuid.UUID) (int64, error)
}

// Cancellation — поля аудита отменённого бронирования.
type Cancellation struct {
	At     time.Time
	By     uuid.UUID
	Reason string
}

// Реализация на GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := forUpdate(r.db.WithContext(ctx)).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status model.BookingStatus,
	cancel *Cancellation,
) error {
	update := map[string]any{
		"status": status,
	}
	if cancel != nil {
		update["cancelled_at"] = cancel.At.UTC()
		update["cancelled_by"] = cancel.By
		update["cancellation_reason"] = cancel.Reason
	}
	return r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", id).
		Updates(update).
		Error
}

func (r *GormBookingRepository) Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"start_time": start.UTC(),
			"end_time":   end.UTC(),
		}).
		Error
}

func (r *GormBookingRepository) MarkRefunded(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", id).
		Update("refunded", true).
		Error
}

func (r *GormBookingRepository) Promote(ctx context.Context, id uuid.UUID, subscriptionID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ? AND status = ?", id, model.BookingStatusPendingCredits).
		Updates(map[string]any{
			"status":          model.BookingStatusConfirmed,
			"subscription_id": subscriptionID,
		}).
		Error
}

func (r *GormBookingRepository) ListActiveOverlapping(
	ctx context.Context,
	coachID uuid.UUID,
	from, to time.Time,
	excludeID *uuid.UUID,
) ([]model.Booking, error) {
	// Здесь грубое окно; точную полуоткрытую проверку делает вызывающий.
	q := r.db.WithContext(ctx).
		Where("coach_id = ?", coachID).
		Where("status IN ?", model.ActiveBookingStatuses).
		Where("start_time < ? AND end_time > ?", to.UTC(), from.UTC())
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}

	var bookings []model.Booking
	if err := q.Order("start_time ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ExistsAt(
	ctx context.Context,
	coachID, customerID uuid.UUID,
	start time.Time,
	scheduleID uuid.UUID,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("coach_id = ? AND customer_id = ? AND start_time = ?", coachID, customerID, start.UTC()).
		Where("(status <> ? OR recurring_schedule_id = ?)", model.BookingStatusCancelled, scheduleID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormBookingRepository) ListPendingCredits(ctx context.Context, customerID uuid.UUID) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, model.BookingStatusPendingCredits).
		Order("start_time ASC, created_at ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ListCustomersWithPendingCredits(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("status = ? AND customer_id IS NOT NULL", model.BookingStatusPendingCredits).
		Distinct().
		Pluck("customer_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormBookingRepository) ListByCoachAndRange(
	ctx context.Context,
	filter BookingFilter,
	limit, offset int,
) ([]model.Booking, int64, error) {
	var (
		bookings []model.Booking
		total    int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("coach_id = ?", filter.CoachID).
		Where("start_time >= ? AND start_time < ?", filter.From.UTC(), filter.To.UTC())
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("start_time ASC").Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

func (r *GormBookingRepository) ListSeries(ctx context.Context, parentID uuid.UUID) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Where("parent_event_id = ?", parentID).
		Order("start_time ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) DeleteWithSeries(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? OR parent_event_id = ?", id, id).
		Delete(&model.Booking{})
	return res.RowsAffected, res.Error
}
