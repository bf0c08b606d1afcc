package repository

import (
	"context"
	"hash/fnv"

	"gorm.io/gorm"
)

// Store объединяет репозитории поверх одного соединения или одной транзакции.
type Store struct {
	db *gorm.DB

	Availability  AvailabilityRepository
	Bookings      BookingRepository
	Accounts      AccountRepository
	Packages      PackageRepository
	Subscriptions SubscriptionRepository
	Schedules     ScheduleRepository
	Assignments   AssignmentRepository
	Events        EventRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Availability:  NewGormAvailabilityRepository(db),
		Bookings:      NewGormBookingRepository(db),
		Accounts:      NewGormAccountRepository(db),
		Packages:      NewGormPackageRepository(db),
		Subscriptions: NewGormSubscriptionRepository(db),
		Schedules:     NewGormScheduleRepository(db),
		Assignments:   NewGormAssignmentRepository(db),
		Events:        NewGormEventRepository(db),
	}
}

// Transaction вызывает fn со Store, привязанным к одной транзакции.
// Любая ошибка из fn откатывает транзакцию.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// LockKey берёт advisory-блокировку postgres на время транзакции, чтобы
// секции проверки и записи с одним ключом не шли параллельно в разных
// процессах. На других диалектах ничего не делает.
func (s *Store) LockKey(ctx context.Context, key string) error {
	if s.db.Dialector.Name() != dialectPostgres {
		return nil
	}
	return s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey(key)).Error
}

func advisoryKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
