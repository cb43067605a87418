package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Where adds a raw condition.
func Where(query string, args ...any) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// OrderBy sorts by an allow-listed column.
func OrderBy(column string, desc bool, allow map[string]bool) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if !allow[column] {
			return db
		}
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", column, dir))
	})
}

// Limit caps the row count; non-positive values are ignored.
func Limit(n int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	})
}

// CreatedBetween filters on created_at, either bound may be nil.
func CreatedBetween(from, to *time.Time) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where("created_at >= ?", from.UTC())
		}
		if to != nil {
			db = db.Where("created_at <= ?", to.UTC())
		}
		return db
	})
}

// After continues a created_at/id keyset page in descending order.
func After(createdAt time.Time, id int64) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	})
}
