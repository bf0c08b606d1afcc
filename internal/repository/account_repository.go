package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/model"
)

type AccountRepository interface {
	GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*model.CustomerAccount, error)
	Create(ctx context.Context, account *model.CustomerAccount) error
	// Списывает amount, если хватает баланса. Иначе возвращает false.
	Debit(ctx context.Context, customerID uuid.UUID, amount int) (bool, error)
	// Прибавляет amount к счётчику.
	Credit(ctx context.Context, customerID uuid.UUID, amount int) error
}

type GormAccountRepository struct {
	db *gorm.DB
}

func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*model.CustomerAccount, error) {
	var a model.CustomerAccount
	if err := r.db.WithContext(ctx).First(&a, "customer_id = ?", customerID).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAccountRepository) Create(ctx context.Context, account *model.CustomerAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *GormAccountRepository) Debit(ctx context.Context, customerID uuid.UUID, amount int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CustomerAccount{}).
		Where("customer_id = ? AND session_credits >= ?", customerID, amount).
		Update("session_credits", gorm.Expr("session_credits - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormAccountRepository) Credit(ctx context.Context, customerID uuid.UUID, amount int) error {
	res := r.db.WithContext(ctx).
		Model(&model.CustomerAccount{}).
		Where("customer_id = ?", customerID).
		Update("session_credits", gorm.Expr("session_credits + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
