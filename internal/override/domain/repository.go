package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *PriceOverride) error
	ListByOrderLine(ctx context.Context, db *gorm.DB, tenantID, orderLineID snowflake.ID) ([]PriceOverride, error)
	ListByOrder(ctx context.Context, db *gorm.DB, tenantID, orderID snowflake.ID) ([]PriceOverride, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]PriceOverride, error)
}
