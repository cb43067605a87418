// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
	InvoiceStatusVoid   InvoiceStatus = "VOID"
)

// Invoice is issued once per order. InvoiceNumber never changes after issue.
type Invoice struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID      `gorm:"not null;uniqueIndex:ux_invoices_tenant_order,priority:1;uniqueIndex:ux_invoices_tenant_number,priority:1;index:ix_invoices_tenant_prefix,priority:1" json:"tenant_id"`
	CustomerID    snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	OrderID       snowflake.ID      `gorm:"not null;uniqueIndex:ux_invoices_tenant_order,priority:2" json:"order_id"`
	InvoiceNumber string            `gorm:"type:varchar(9);not null;uniqueIndex:ux_invoices_tenant_number,priority:2" json:"invoice_number"`
	StateCode     string            `gorm:"type:varchar(2);not null" json:"state_code"`
	Prefix        string            `gorm:"type:varchar(4);not null;index:ix_invoices_tenant_prefix,priority:2" json:"prefix"`
	Sequence      int64             `gorm:"not null" json:"sequence"`
	Status        InvoiceStatus     `gorm:"type:varchar(16);not null;default:'ISSUED'" json:"status"`
	Subtotal      decimal.Decimal   `gorm:"type:numeric(18,2);not null" json:"subtotal"`
	Total         decimal.Decimal   `gorm:"type:numeric(18,2);not null" json:"total"`
	Currency      string            `gorm:"type:varchar(3);not null" json:"currency"`
	DeliveryDate  time.Time         `gorm:"not null" json:"delivery_date"`
	IssuedAt      time.Time         `gorm:"not null" json:"issued_at"`
	DueDate       time.Time         `gorm:"not null" json:"due_date"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Items []InvoiceItem `gorm:"-" json:"items,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem is a priced order line as printed on the invoice.
type InvoiceItem struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID        snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	InvoiceID       snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	OrderLineID     snowflake.ID    `gorm:"not null" json:"order_line_id"`
	SKUID           snowflake.ID    `gorm:"column:sku_id;not null" json:"sku_id"`
	SKUCode         string          `gorm:"column:sku_code;type:text" json:"sku_code,omitempty"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	BottlesPerCase  *int            `json:"bottles_per_case,omitempty"`
	Cases           decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"cases"`
	QuantityLabel   string          `gorm:"type:text;not null" json:"quantity_label"`
	UnitPrice       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	Amount          decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	PriceOverridden bool            `gorm:"not null;default:false" json:"price_overridden"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceSequence is the per (tenant, prefix) counter. LastValue only grows.
type InvoiceSequence struct {
	TenantID  snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"tenant_id"`
	Prefix    string       `gorm:"primaryKey;type:varchar(4)" json:"prefix"`
	LastValue int64        `gorm:"not null;default:0" json:"last_value"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (InvoiceSequence) TableName() string { return "invoice_sequences" }

type InvoiceCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}
