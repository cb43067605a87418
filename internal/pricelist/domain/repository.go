package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	InsertList(ctx context.Context, db *gorm.DB, list *PriceList) error
	FindListByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*PriceList, error)
	// LockList reads the list and holds its row until the transaction ends.
	LockList(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*PriceList, error)
	FindActiveDefault(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*PriceList, error)
	ListLists(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, activeOnly bool) ([]PriceList, error)
	SetActive(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, active bool, now time.Time) (int64, error)

	InsertItem(ctx context.Context, db *gorm.DB, item *PriceListItem) error
	ListItems(ctx context.Context, db *gorm.DB, tenantID, priceListID snowflake.ID) ([]PriceListItem, error)
	ListItemsBySKU(ctx context.Context, db *gorm.DB, tenantID, priceListID snowflake.ID, skuIDs []snowflake.ID) ([]PriceListItem, error)
	UpdateItemPrice(ctx context.Context, db *gorm.DB, tenantID, itemID snowflake.ID, price decimal.Decimal, now time.Time) (int64, error)

	// ListActiveForTenant returns every active list with its items.
	ListActiveForTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]PriceList, error)
}
