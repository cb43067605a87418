package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vintner/internal/authorization"
)

type CreatePriceListRequest struct {
	TenantID            snowflake.ID     `validate:"required"`
	Name                string           `validate:"required,max=200"`
	JurisdictionType    JurisdictionType `validate:"required"`
	JurisdictionValue   string
	AllowManualOverride bool
	IsDefault           bool
	Currency            string `validate:"omitempty,len=3,alpha"`
	ExpiresAt           *time.Time
}

type AddItemRequest struct {
	TenantID    snowflake.ID `validate:"required"`
	PriceListID snowflake.ID `validate:"required"`
	SKUID       snowflake.ID `validate:"required"`
	SKUCode     string
	Price       decimal.Decimal
	MinQuantity int  `validate:"omitempty,gte=1"`
	MaxQuantity *int `validate:"omitempty,gte=1"`
}

type ListPriceListsRequest struct {
	TenantID   snowflake.ID
	ActiveOnly bool
}

type BulkAdjustRequest struct {
	TenantID      snowflake.ID   `validate:"required"`
	PriceListID   snowflake.ID   `validate:"required"`
	SKUIDs        []snowflake.ID `validate:"required,min=1"`
	PercentChange decimal.Decimal
	Actor         authorization.Actor
}

type AdjustedItem struct {
	PriceListItemID snowflake.ID    `json:"price_list_item_id"`
	SKUID           snowflake.ID    `json:"sku_id"`
	OldPrice        decimal.Decimal `json:"old_price"`
	NewPrice        decimal.Decimal `json:"new_price"`
}

// BulkAdjustResult lists what was written. When the batch is refused,
// Updated is empty and Rejected names the items that would go negative.
type BulkAdjustResult struct {
	Updated  []AdjustedItem `json:"updated"`
	Rejected []AdjustedItem `json:"rejected"`
}

type Service interface {
	CreatePriceList(ctx context.Context, req CreatePriceListRequest) (PriceList, error)
	AddItem(ctx context.Context, req AddItemRequest) (PriceListItem, error)
	DisablePriceList(ctx context.Context, tenantID, id snowflake.ID) error
	GetPriceList(ctx context.Context, tenantID, id snowflake.ID) (PriceList, error)
	ListPriceLists(ctx context.Context, req ListPriceListsRequest) ([]PriceList, error)
	BulkAdjustPrices(ctx context.Context, req BulkAdjustRequest) (BulkAdjustResult, error)
}
