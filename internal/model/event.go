package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Тип события аудита.
type AuditEventType string

const (
	AuditBookingCreated     AuditEventType = "booking_created"
	AuditBookingConfirmed   AuditEventType = "booking_confirmed"
	AuditBookingCancelled   AuditEventType = "booking_cancelled"
	AuditBookingPromoted    AuditEventType = "booking_promoted"
	AuditBookingDeleted     AuditEventType = "booking_deleted"
	AuditCreditsAdded       AuditEventType = "credits_added"
	AuditAssignmentCreated  AuditEventType = "assignment_created"
	AuditAssignmentChanged  AuditEventType = "assignment_status_changed"
	AuditSubscriptionChange AuditEventType = "subscription_changed"
)

// events — события аудита. Ссылки хранятся как простые ID, чтобы история
// не пропадала вместе с удалёнными строками.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType AuditEventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	ActorID      *uuid.UUID `gorm:"type:uuid;index"`
	CustomerID   *uuid.UUID `gorm:"type:uuid;index"`
	BookingID    *uuid.UUID `gorm:"type:uuid;index"`
	AssignmentID *uuid.UUID `gorm:"type:uuid;index"`

	Details string `gorm:"type:text"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
