package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertOrder(ctx context.Context, db *gorm.DB, order *Order) error
	FindOrderByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Order, error)
	// LockOrder is FindOrderByID holding the row for the rest of the transaction.
	LockOrder(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Order, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, status Status, now time.Time) (int64, error)

	InsertLine(ctx context.Context, db *gorm.DB, line *OrderLine) error
	FindLineByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*OrderLine, error)
	ListLines(ctx context.Context, db *gorm.DB, tenantID, orderID snowflake.ID) ([]OrderLine, error)
	// UpdateLinePricing writes the price fields of line.
	UpdateLinePricing(ctx context.Context, db *gorm.DB, line *OrderLine) (int64, error)
}
