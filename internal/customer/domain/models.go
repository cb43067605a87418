package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer carries the jurisdiction attributes used for price resolution
// and invoice numbering.
type Customer struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID          snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	Name              string        `gorm:"type:text;not null" json:"name"`
	AccountNumber     string        `gorm:"type:text" json:"account_number,omitempty"`
	State             string        `gorm:"type:varchar(8)" json:"state,omitempty"`
	Territory         string        `gorm:"type:text" json:"territory,omitempty"`
	IsTaxExempt       bool          `gorm:"not null;default:false" json:"is_tax_exempt"`
	InvoiceStateCode  *string       `gorm:"type:varchar(8)" json:"invoice_state_code,omitempty"`
	CustomPriceListID *snowflake.ID `json:"custom_price_list_id,omitempty"`
	PaymentTermsDays  int           `gorm:"not null;default:30" json:"payment_terms_days"`
	CreatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
