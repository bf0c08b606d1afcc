package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UnlimitedCredits — выделение для безлимитных пакетов.
// Списания и возвраты его не меняют.
const UnlimitedCredits = 999999

// ID генерируются в приложении, чтобы схема работала и в postgres, и в sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// DateValue приводит календарную дату к хранимому виду (полночь UTC).
func DateValue(t time.Time) datatypes.Date {
	y, m, d := t.UTC().Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// DatePtr — DateValue для необязательных дат.
func DatePtr(t *time.Time) *datatypes.Date {
	if t == nil {
		return nil
	}
	d := DateValue(*t)
	return &d
}

// AsTime возвращает дату как полночь UTC.
func AsTime(d datatypes.Date) time.Time {
	y, m, day := time.Time(d).Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// AsTimePtr — AsTime для необязательных дат.
func AsTimePtr(d *datatypes.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := AsTime(*d)
	return &t
}

// ClockValue сохраняет смещение от полуночи.
func ClockValue(d time.Duration) datatypes.Time {
	return datatypes.Time(d)
}

// Clock возвращает смещение от полуночи для хранимого времени суток.
func Clock(t datatypes.Time) time.Duration {
	return time.Duration(t)
}
