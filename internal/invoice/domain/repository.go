package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertItems(ctx context.Context, db *gorm.DB, items []InvoiceItem) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Invoice, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, tenantID, orderID snowflake.ID) (*Invoice, error)
	FindByNumber(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, number string) (*Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, tenantID, invoiceID snowflake.ID) ([]InvoiceItem, error)

	// MaxIssuedSequence is the highest sequence stored on invoices with prefix.
	MaxIssuedSequence(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, prefix string) (int64, error)
	// SeedSequence inserts the counter row unless it already exists.
	SeedSequence(ctx context.Context, db *gorm.DB, seq *InvoiceSequence) error
	// IncrementSequence raises the counter to at least floor, then adds one.
	IncrementSequence(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, prefix string, floor int64, now time.Time) (int64, error)
	CurrentSequence(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, prefix string) (int64, error)
}
