package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/calendar"
)

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentActive    AssignmentStatus = "active"
	AssignmentDeclined  AssignmentStatus = "declined"
	AssignmentCancelled AssignmentStatus = "cancelled"
	AssignmentCompleted AssignmentStatus = "completed"
)

// OpenAssignmentStatuses участвуют в проверке пересечений по клиенту.
var OpenAssignmentStatuses = []AssignmentStatus{AssignmentPending, AssignmentActive}

// AssignmentPermissions — права тренера-заместителя на клиента.
type AssignmentPermissions struct {
	CanViewHistory  bool `json:"can_view_history"`
	CanBookSessions bool `json:"can_book_sessions"`
	CanModifyPlans  bool `json:"can_modify_plans"`
	CanAddNotes     bool `json:"can_add_notes"`
}

// DefaultAssignmentPermissions применяются, если в запросе прав нет.
func DefaultAssignmentPermissions() AssignmentPermissions {
	return AssignmentPermissions{CanViewHistory: true, CanBookSessions: true, CanAddNotes: true}
}

// coach_assignments — замены тренера.
type CoachAssignment struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	PrimaryCoachID    uuid.UUID `gorm:"type:uuid;not null;index"`
	SubstituteCoachID uuid.UUID `gorm:"type:uuid;not null;index"`
	CustomerID        uuid.UUID `gorm:"type:uuid;not null;index"`

	StartDate datatypes.Date `gorm:"not null"`
	EndDate   *datatypes.Date

	Reason string           `gorm:"type:text"`
	Status AssignmentStatus `gorm:"type:varchar(20);not null;index"`

	AssignmentPermissions `gorm:"embedded"`

	AcceptedAt    *time.Time
	DeclinedAt    *time.Time
	DeclineReason string `gorm:"type:text"`
	CancelledAt   *time.Time
	CancelReason  string `gorm:"type:text"`
	CompletedAt   *time.Time

	Rating   *int
	Feedback string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (a *CoachAssignment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

func (a *CoachAssignment) DateRange() calendar.DateRange {
	return calendar.DateRange{Start: AsTime(a.StartDate), End: AsTimePtr(a.EndDate)}
}

// IsOpen сообщает, участвует ли замена в проверке пересечений.
func (a *CoachAssignment) IsOpen() bool {
	return a.Status == AssignmentPending || a.Status == AssignmentActive
}
