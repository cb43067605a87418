package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PriceOverride is one append-only ledger entry. Rows are never updated.
type PriceOverride struct {
	ID                snowflake.ID        `gorm:"primaryKey" json:"id"`
	CorrelationID     string              `gorm:"type:varchar(26);not null;uniqueIndex" json:"correlation_id"`
	TenantID          snowflake.ID        `gorm:"not null;index:idx_price_overrides_tenant_created,priority:1" json:"tenant_id"`
	OrderID           snowflake.ID        `gorm:"not null;index" json:"order_id"`
	OrderLineID       snowflake.ID        `gorm:"not null;index" json:"order_line_id"`
	SKUID             snowflake.ID        `gorm:"column:sku_id;not null" json:"sku_id"`
	SKUCode           string              `gorm:"column:sku_code;type:text" json:"sku_code,omitempty"`
	PriceListID       *snowflake.ID       `json:"price_list_id,omitempty"`
	ResolvedPrice     decimal.NullDecimal `gorm:"type:numeric(18,2)" json:"resolved_price"`
	PreviousUnitPrice decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"previous_unit_price"`
	OverriddenPrice   decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"overridden_price"`
	ChangePercent     decimal.NullDecimal `gorm:"type:numeric(9,2)" json:"change_percent"`
	Reason            string              `gorm:"type:text;not null" json:"reason"`
	ActorID           string              `gorm:"type:text;not null" json:"actor_id"`
	ActorRole         string              `gorm:"type:varchar(32);not null" json:"actor_role"`
	RequiresApproval  bool                `gorm:"not null;default:false" json:"requires_approval"`
	Metadata          datatypes.JSONMap   `json:"metadata,omitempty"`
	CreatedAt         time.Time           `gorm:"not null;index:idx_price_overrides_tenant_created,priority:2" json:"created_at"`
}

func (PriceOverride) TableName() string { return "price_overrides" }

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	TenantID snowflake.ID
	From     *time.Time
	To       *time.Time
	ActorID  string
	Cursor   *Cursor
	Limit    int
}
