package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/model"
)

type PackageRepository interface {
	Create(ctx context.Context, pkg *model.Package) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Package, error)
	ListByCoach(ctx context.Context, coachID uuid.UUID, activeOnly bool) ([]model.Package, error)
}

type GormPackageRepository struct {
	db *gorm.DB
}

func NewGormPackageRepository(db *gorm.DB) *GormPackageRepository {
	return &GormPackageRepository{db: db}
}

func (r *GormPackageRepository) Create(ctx context.Context, pkg *model.Package) error {
	return r.db.WithContext(ctx).Create(pkg).Error
}

func (r *GormPackageRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Package, error) {
	var p model.Package
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPackageRepository) ListByCoach(ctx context.Context, coachID uuid.UUID, activeOnly bool) ([]model.Package, error) {
	q := r.db.WithContext(ctx).Where("coach_id = ?", coachID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var pkgs []model.Package
	if err := q.Order("name ASC").Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *model.PackageSubscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PackageSubscription, error)
	// Активные подписки клиента, действующие в day, старые первыми.
	ListActiveForCustomer(ctx context.Context, customerID uuid.UUID, day time.Time) ([]model.PackageSubscription, error)
	// Переносит amount из remaining в used. false, если остатка не хватает.
	Debit(ctx context.Context, id uuid.UUID, amount int) (bool, error)
	// Возвращает amount из used в remaining. false, если использовано меньше amount.
	Refund(ctx context.Context, id uuid.UUID, amount int) (bool, error)
	// Увеличивает allocated и remaining вместе.
	Grant(ctx context.Context, id uuid.UUID, amount int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.SubscriptionStatus, at *time.Time, reason string) error
}

type GormSubscriptionRepository struct {
	db *gorm.DB
}

func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

func (r *GormSubscriptionRepository) Create(ctx context.Context, sub *model.PackageSubscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *GormSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PackageSubscription, error) {
	var s model.PackageSubscription
	if err := r.db.WithContext(ctx).Preload("Package").First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSubscriptionRepository) ListActiveForCustomer(
	ctx context.Context,
	customerID uuid.UUID,
	day time.Time,
) ([]model.PackageSubscription, error) {
	d := model.DateValue(day)
	var subs []model.PackageSubscription
	err := r.db.WithContext(ctx).
		Preload("Package").
		Where("customer_id = ? AND status = ?", customerID, model.SubscriptionActive).
		Where("start_date <= ?", d).
		Where("end_date IS NULL OR end_date >= ?", d).
		Order("start_date ASC, created_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *GormSubscriptionRepository) Debit(ctx context.Context, id uuid.UUID, amount int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.PackageSubscription{}).
		Where("id = ? AND status = ? AND credits_remaining >= ?", id, model.SubscriptionActive, amount).
		Updates(map[string]any{
			"credits_used":      gorm.Expr("credits_used + ?", amount),
			"credits_remaining": gorm.Expr("credits_remaining - ?", amount),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormSubscriptionRepository) Refund(ctx context.Context, id uuid.UUID, amount int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.PackageSubscription{}).
		Where("id = ? AND credits_used >= ?", id, amount).
		Updates(map[string]any{
			"credits_used":      gorm.Expr("credits_used - ?", amount),
			"credits_remaining": gorm.Expr("credits_remaining + ?", amount),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormSubscriptionRepository) Grant(ctx context.Context, id uuid.UUID, amount int) error {
	res := r.db.WithContext(ctx).
		Model(&model.PackageSubscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"credits_allocated": gorm.Expr("credits_allocated + ?", amount),
			"credits_remaining": gorm.Expr("credits_remaining + ?", amount),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormSubscriptionRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status model.SubscriptionStatus,
	at *time.Time,
	reason string,
) error {
	update := map[string]any{"status": status}
	if status == model.SubscriptionCancelled && at != nil {
		update["cancelled_at"] = at.UTC()
		update["cancellation_reason"] = reason
	}
	return r.db.WithContext(ctx).
		Model(&model.PackageSubscription{}).
		Where("id = ?", id).
		Updates(update).Error
}
