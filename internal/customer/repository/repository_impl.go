package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (
			id, tenant_id, name, account_number, state, territory, is_tax_exempt,
			invoice_state_code, custom_price_list_id, payment_terms_days, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.TenantID,
		customer.Name,
		customer.AccountNumber,
		customer.State,
		customer.Territory,
		customer.IsTaxExempt,
		customer.InvoiceStateCode,
		customer.CustomPriceListID,
		customer.PaymentTermsDays,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, name, account_number, state, territory, is_tax_exempt,
		 invoice_state_code, custom_price_list_id, payment_terms_days, created_at, updated_at
		 FROM customers WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) UpdatePriceList(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, priceListID *snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE customers SET custom_price_list_id = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		priceListID,
		time.Now().UTC(),
		tenantID,
		id,
	)
	return res.RowsAffected, res.Error
}
