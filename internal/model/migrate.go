package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех таблиц расписания.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&WeeklyAvailabilityRule{},
		&DateOverride{},
		&CustomerAccount{},
		&Package{},
		&PackageSubscription{},
		&RecurringSchedule{},
		&Booking{},
		&CoachAssignment{},
		&Event{},
	)
}
