package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	pricelistdomain "github.com/smallbiznis/vintner/internal/pricelist/domain"
)

// PriceResolution is the tier the resolver picked for a customer, SKU and
// quantity.
type PriceResolution struct {
	PriceListID         snowflake.ID                     `json:"price_list_id"`
	PriceListItemID     snowflake.ID                     `json:"price_list_item_id"`
	JurisdictionType    pricelistdomain.JurisdictionType `json:"jurisdiction_type"`
	Price               decimal.Decimal                  `json:"price"`
	Currency            string                           `json:"currency"`
	MinQuantity         int                              `json:"min_quantity"`
	MaxQuantity         *int                             `json:"max_quantity,omitempty"`
	AllowManualOverride bool                             `json:"allow_manual_override"`
}
