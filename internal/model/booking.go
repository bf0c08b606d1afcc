package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/calendar"
)

type BookingStatus string

const (
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusPending        BookingStatus = "pending"
	BookingStatusPendingCredits BookingStatus = "pending_credits"
	BookingStatusCancelled      BookingStatus = "cancelled"
)

// ActiveBookingStatuses — статусы, занимающие календарь тренера.
var ActiveBookingStatuses = []BookingStatus{BookingStatusConfirmed, BookingStatusPending}

type EventType string

const (
	EventTypeCustomerSession EventType = "customer_session"
	EventTypePersonalEvent   EventType = "personal_event"
)

// bookings
type Booking struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CoachID uuid.UUID `gorm:"type:uuid;not null;index:idx_booking_coach_start,priority:1"`
	// nil для личного события тренера
	CustomerID *uuid.UUID `gorm:"type:uuid;index"`

	StartTime time.Time `gorm:"not null;index:idx_booking_coach_start,priority:2"`
	EndTime   time.Time `gorm:"not null"`

	Status    BookingStatus `gorm:"type:varchar(32);not null;index"`
	EventType EventType     `gorm:"type:varchar(32);not null"`
	Title     string        `gorm:"type:varchar(255)"`

	IsRecurring      bool
	RecurringDays    datatypes.JSONSlice[int]
	RecurringEndDate *datatypes.Date
	ParentEventID    *uuid.UUID `gorm:"type:uuid;index"`

	// Из чего оплачено занятие; nil — счётчик клиента.
	SubscriptionID *uuid.UUID `gorm:"type:uuid;index"`
	Refunded       bool
	// Заполняется у занятий, созданных автозаписью.
	RecurringScheduleID *uuid.UUID `gorm:"type:uuid;index"`

	SessionNotes string `gorm:"type:text"`
	CoachNotes   string `gorm:"type:text"`

	CancelledAt        *time.Time
	CancelledBy        *uuid.UUID `gorm:"type:uuid"`
	CancellationReason string     `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// BeforeSave хранит моменты в UTC, чтобы запросы по интервалам сравнивались одинаково.
func (b *Booking) BeforeSave(*gorm.DB) error {
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	if b.CancelledAt != nil {
		t := b.CancelledAt.UTC()
		b.CancelledAt = &t
	}
	return nil
}

func (b *Booking) Range() calendar.TimeRange {
	return calendar.TimeRange{Start: b.StartTime, End: b.EndTime}
}

// IsActive сообщает, занимает ли бронирование время тренера.
func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusConfirmed || b.Status == BookingStatusPending
}

// IsSeriesParent сообщает, удаляются ли вместе с b экземпляры серии.
func (b *Booking) IsSeriesParent() bool {
	return b.IsRecurring && b.ParentEventID == nil
}

func (b *Booking) IsCustomerSession() bool {
	return b.EventType == EventTypeCustomerSession && b.CustomerID != nil
}
