package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Customer, error)
	UpdatePriceList(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, priceListID *snowflake.ID) (int64, error)
}
