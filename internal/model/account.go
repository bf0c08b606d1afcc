package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// customer_accounts — счётчик занятий клиента.
type CustomerAccount struct {
	CustomerID uuid.UUID `gorm:"type:uuid;primaryKey"`
	CoachID    uuid.UUID `gorm:"type:uuid;not null;index"`

	DisplayName    string `gorm:"type:varchar(255)"`
	SessionCredits int    `gorm:"not null;check:chk_account_credits,session_credits >= 0"`
	IsActive       bool   `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (a *CustomerAccount) BeforeCreate(*gorm.DB) error {
	ensureID(&a.CustomerID)
	return nil
}

type PeriodType string

const (
	PeriodWeekly    PeriodType = "weekly"
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodYearly    PeriodType = "yearly"
	PeriodOneTime   PeriodType = "one_time"
)

// packages — пакеты занятий тренера.
type Package struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	CoachID uuid.UUID `gorm:"type:uuid;not null;index"`

	Name        string `gorm:"type:varchar(100);not null"`
	Description string `gorm:"type:text"`

	CreditsPerPeriod int  `gorm:"not null"`
	IsUnlimited      bool `gorm:"not null"`

	Price    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency string          `gorm:"type:varchar(3);not null"`

	PeriodType PeriodType `gorm:"type:varchar(20);not null"`
	AutoRenew  bool       `gorm:"not null"`

	// Дни недели (0 = понедельник), в которые можно записаться; пусто — любой день.
	ValidDays datatypes.JSONSlice[int]

	IsActive bool `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (p *Package) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// package_subscriptions
//
// Всегда CreditsUsed + CreditsRemaining == CreditsAllocated.
type PackageSubscription struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PackageID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	CoachID    uuid.UUID `gorm:"type:uuid;not null;index"`

	StartDate       datatypes.Date `gorm:"not null"`
	EndDate         *datatypes.Date
	NextRenewalDate *datatypes.Date

	CreditsAllocated int `gorm:"not null"`
	CreditsUsed      int `gorm:"not null"`
	CreditsRemaining int `gorm:"not null;check:chk_sub_remaining,credits_remaining >= 0"`

	Status SubscriptionStatus `gorm:"type:varchar(20);not null;index"`

	CancelledAt        *time.Time
	CancellationReason string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Package *Package `gorm:"foreignKey:PackageID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (s *PackageSubscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

func (s *PackageSubscription) IsUnlimited() bool {
	return s.CreditsAllocated >= UnlimitedCredits
}

// CoversDate сообщает, попадает ли day в срок действия подписки.
func (s *PackageSubscription) CoversDate(day time.Time) bool {
	d := DateValue(day)
	if time.Time(d).Before(AsTime(s.StartDate)) {
		return false
	}
	return s.EndDate == nil || !time.Time(d).After(AsTime(*s.EndDate))
}
