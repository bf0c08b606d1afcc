package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dialectPostgres = "postgres"

// forUpdate добавляет SELECT ... FOR UPDATE там, где есть блокировки строк.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == dialectPostgres {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
