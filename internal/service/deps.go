package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Leganyst/coaching-platform/internal/logging"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/repository"
)

const (
	// DefaultRefundGrace is how far ahead of the session start a cancellation
	// must happen for the credit to be returned.
	DefaultRefundGrace = 24 * time.Hour
	// DefaultSlotMinutes is used by ListSlots when no duration is given.
	DefaultSlotMinutes = 60
)

// Policy holds the tunable business constants.
type Policy struct {
	RefundGrace        time.Duration
	DefaultSlotMinutes int
}

func DefaultPolicy() Policy {
	return Policy{RefundGrace: DefaultRefundGrace, DefaultSlotMinutes: DefaultSlotMinutes}
}

// Deps are the collaborators shared by every service.
type Deps struct {
	Store  *repository.Store
	Locks  *KeyedMutex
	Logger *zap.Logger
	// Now returns the current instant; tests replace it.
	Now    func() time.Time
	Policy Policy
}

func (d Deps) withDefaults() Deps {
	if d.Locks == nil {
		d.Locks = NewKeyedMutex()
	}
	d.Logger = logging.OrNop(d.Logger)
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Policy.RefundGrace <= 0 {
		d.Policy.RefundGrace = DefaultRefundGrace
	}
	if d.Policy.DefaultSlotMinutes <= 0 {
		d.Policy.DefaultSlotMinutes = DefaultSlotMinutes
	}
	return d
}

func (d Deps) now() time.Time {
	return d.Now().UTC()
}

// locked runs fn in a transaction while holding key both in-process and,
// on postgres, as an advisory lock. The in-process lock is taken before the
// transaction begins so that waiting callers do not hold a connection.
func (d Deps) locked(ctx context.Context, key string, fn func(tx *repository.Store) error) error {
	unlock := d.Locks.Lock(key)
	defer unlock()

	return d.Store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.LockKey(ctx, key); err != nil {
			return err
		}
		return fn(tx)
	})
}

type auditEntry struct {
	Type         model.AuditEventType
	ActorID      *uuid.UUID
	CustomerID   *uuid.UUID
	BookingID    *uuid.UUID
	AssignmentID *uuid.UUID
	Details      map[string]any
}

// audit writes an event row within the caller's transaction.
func audit(ctx context.Context, tx *repository.Store, e auditEntry) error {
	var details string
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = string(raw)
	}
	return tx.Events.Create(ctx, &model.Event{
		EventType:    e.Type,
		ActorID:      e.ActorID,
		CustomerID:   e.CustomerID,
		BookingID:    e.BookingID,
		AssignmentID: e.AssignmentID,
		Details:      details,
	})
}

func ptr[T any](v T) *T { return &v }
