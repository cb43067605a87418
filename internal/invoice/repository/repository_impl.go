package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const invoiceColumns = `id, tenant_id, customer_id, order_id, invoice_number, state_code, prefix, sequence,
	status, subtotal, total, currency, delivery_date, issued_at, due_date, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.TenantID,
		invoice.CustomerID,
		invoice.OrderID,
		invoice.InvoiceNumber,
		invoice.StateCode,
		invoice.Prefix,
		invoice.Sequence,
		invoice.Status,
		invoice.Subtotal,
		invoice.Total,
		invoice.Currency,
		invoice.DeliveryDate,
		invoice.IssuedAt,
		invoice.DueDate,
		invoice.Metadata,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(ctx, db, `tenant_id = ? AND id = ?`, tenantID, id)
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, tenantID, orderID snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(ctx, db, `tenant_id = ? AND order_id = ?`, tenantID, orderID)
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, number string) (*domain.Invoice, error) {
	return r.findOne(ctx, db, `tenant_id = ? AND invoice_number = ?`, tenantID, number)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE `+where+` LIMIT 1`,
		args...,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, tenantID, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MaxIssuedSequence(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, prefix string) (int64, error) {
	var value int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(sequence), 0) FROM invoices WHERE tenant_id = ? AND prefix = ?`,
		tenantID,
		prefix,
	).Scan(&value).Error
	return value, err
}

func (r *repo) SeedSequence(ctx context.Context, db *gorm.DB, seq *domain.InvoiceSequence) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "prefix"}},
			DoNothing: true,
		}).
		Create(seq).Error
}

func (r *repo) IncrementSequence(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, prefix string, floor int64, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoice_sequences
		 SET last_value = (CASE WHEN last_value < ? THEN ? ELSE last_value END) + 1, updated_at = ?
		 WHERE tenant_id = ? AND prefix = ?`,
		floor,
		floor,
		now,
		tenantID,
		prefix,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) CurrentSequence(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, prefix string) (int64, error) {
	var value int64
	err := db.WithContext(ctx).Raw(
		`SELECT last_value FROM invoice_sequences WHERE tenant_id = ? AND prefix = ?`,
		tenantID,
		prefix,
	).Scan(&value).Error
	return value, err
}
