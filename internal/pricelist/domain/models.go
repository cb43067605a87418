package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type JurisdictionType string

const (
	JurisdictionState   JurisdictionType = "STATE"
	JurisdictionRegion  JurisdictionType = "REGION"
	JurisdictionCustom  JurisdictionType = "CUSTOM"
	JurisdictionDefault JurisdictionType = "DEFAULT"
)

func (t JurisdictionType) Valid() bool {
	switch t {
	case JurisdictionState, JurisdictionRegion, JurisdictionCustom, JurisdictionDefault:
		return true
	}
	return false
}

// PriceList is a jurisdiction-scoped collection of per-SKU tiers. Lists are
// disabled, never deleted.
type PriceList struct {
	ID                  snowflake.ID     `gorm:"primaryKey" json:"id"`
	TenantID            snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_price_lists_tenant_default,where:is_default AND is_active" json:"tenant_id"`
	Name                string           `gorm:"type:text;not null" json:"name"`
	JurisdictionType    JurisdictionType `gorm:"type:varchar(16);not null" json:"jurisdiction_type"`
	JurisdictionValue   string           `gorm:"type:text" json:"jurisdiction_value,omitempty"`
	AllowManualOverride bool             `gorm:"not null;default:false" json:"allow_manual_override"`
	IsDefault           bool             `gorm:"not null;default:false" json:"is_default"`
	IsActive            bool             `gorm:"not null;default:true" json:"is_active"`
	Currency            string           `gorm:"type:varchar(3);not null" json:"currency"`
	ExpiresAt           *time.Time       `json:"expires_at,omitempty"`
	CreatedAt           time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Items []PriceListItem `gorm:"-" json:"items,omitempty"`
}

func (PriceList) TableName() string { return "price_lists" }

// EffectiveAt reports whether the list takes part in resolution at t.
func (p PriceList) EffectiveAt(t time.Time) bool {
	if !p.IsActive {
		return false
	}
	return p.ExpiresAt == nil || t.Before(*p.ExpiresAt)
}

// PriceListItem is one [MinQuantity, MaxQuantity] tier. A nil MaxQuantity is
// unbounded.
type PriceListItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	PriceListID snowflake.ID    `gorm:"not null;index" json:"price_list_id"`
	SKUID       snowflake.ID    `gorm:"column:sku_id;not null;index" json:"sku_id"`
	SKUCode     string          `gorm:"column:sku_code;type:text" json:"sku_code,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"price"`
	MinQuantity int             `gorm:"not null;default:1" json:"min_quantity"`
	MaxQuantity *int            `json:"max_quantity,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PriceListItem) TableName() string { return "price_list_items" }

func (i PriceListItem) Contains(quantity int) bool {
	if quantity < i.MinQuantity {
		return false
	}
	return i.MaxQuantity == nil || quantity <= *i.MaxQuantity
}

func (i PriceListItem) Overlaps(other PriceListItem) bool {
	if i.SKUID != other.SKUID {
		return false
	}
	if i.MaxQuantity != nil && *i.MaxQuantity < other.MinQuantity {
		return false
	}
	if other.MaxQuantity != nil && *other.MaxQuantity < i.MinQuantity {
		return false
	}
	return true
}
