package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// weekly_availability_rules
type WeeklyAvailabilityRule struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CoachID uuid.UUID `gorm:"type:uuid;not null;index:idx_rule_coach_day,priority:1"`

	// 0 = понедельник .. 6 = воскресенье
	DayOfWeek int `gorm:"not null;index:idx_rule_coach_day,priority:2"`

	StartTime datatypes.Time `gorm:"not null"`
	EndTime   datatypes.Time `gorm:"not null"`

	IsActive bool `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (r *WeeklyAvailabilityRule) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

type DateOverrideKind string

const (
	DateOverrideBlocked  DateOverrideKind = "blocked"
	DateOverrideOverride DateOverrideKind = "override"
)

// date_overrides — не больше одной строки на тренера и дату.
type DateOverride struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CoachID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_override_coach_date,priority:1"`
	Date    datatypes.Date `gorm:"not null;uniqueIndex:idx_override_coach_date,priority:2"`

	Kind DateOverrideKind `gorm:"type:varchar(16);not null"`

	// Только для Kind == override.
	StartTime *datatypes.Time
	EndTime   *datatypes.Time

	Reason string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (o *DateOverride) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
