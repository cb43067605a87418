package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusInvoiced Status = "invoiced"
)

type Order struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID     snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	CustomerID   snowflake.ID `gorm:"not null;index" json:"customer_id"`
	DeliveryDate time.Time    `gorm:"not null" json:"delivery_date"`
	Status       Status       `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Lines []OrderLine `gorm:"-" json:"lines,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderLine keeps what the rules said (ResolvedPrice) apart from what is
// charged (UnitPrice). ResolvedPrice is null for manually priced lines.
type OrderLine struct {
	ID              snowflake.ID        `gorm:"primaryKey" json:"id"`
	TenantID        snowflake.ID        `gorm:"not null;index" json:"tenant_id"`
	OrderID         snowflake.ID        `gorm:"not null;index" json:"order_id"`
	SKUID           snowflake.ID        `gorm:"column:sku_id;not null" json:"sku_id"`
	SKUCode         string              `gorm:"column:sku_code;type:text" json:"sku_code,omitempty"`
	Quantity        int                 `gorm:"not null" json:"quantity"`
	BottlesPerCase  *int                `json:"bottles_per_case,omitempty"`
	PriceListID     *snowflake.ID       `json:"price_list_id,omitempty"`
	ResolvedPrice   decimal.NullDecimal `gorm:"type:numeric(18,2)" json:"resolved_price"`
	UnitPrice       decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	OverridePrice   decimal.NullDecimal `gorm:"type:numeric(18,2)" json:"override_price"`
	PriceOverridden bool                `gorm:"not null;default:false" json:"price_overridden"`
	OverrideReason  *string             `gorm:"type:text" json:"override_reason,omitempty"`
	CreatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (OrderLine) TableName() string { return "order_lines" }

func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
