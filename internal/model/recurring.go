package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// recurring_schedules — недельный шаблон занятия, по которому работает автозапись.
type RecurringSchedule struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	SubscriptionID uuid.UUID `gorm:"type:uuid;not null;index"`
	CustomerID     uuid.UUID `gorm:"type:uuid;not null;index"`
	CoachID        uuid.UUID `gorm:"type:uuid;not null;index"`

	// 0 = понедельник .. 6 = воскресенье
	DayOfWeek int            `gorm:"not null"`
	StartTime datatypes.Time `gorm:"not null"`
	EndTime   datatypes.Time `gorm:"not null"`

	AutoBookEnabled bool `gorm:"not null"`
	BookWeeksAhead  int  `gorm:"not null"`
	IsActive        bool `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Subscription *PackageSubscription `gorm:"foreignKey:SubscriptionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (r *RecurringSchedule) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
