package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/internal/order/domain"
	dbpkg "github.com/smallbiznis/vintner/pkg/db"
	"gorm.io/gorm"
)

const lineColumns = `id, tenant_id, order_id, sku_id, sku_code, quantity, bottles_per_case, price_list_id,
	resolved_price, unit_price, override_price, price_overridden, override_reason, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, tenant_id, customer_id, delivery_date, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.TenantID,
		order.CustomerID,
		order.DeliveryDate,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindOrderByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, customer_id, delivery_date, status, created_at, updated_at
		 FROM orders WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

// LockOrder reads the order row and holds it until db's transaction ends.
func (r *repo) LockOrder(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, customer_id, delivery_date, status, created_at, updated_at
		 FROM orders WHERE tenant_id = ? AND id = ?`+dbpkg.ForUpdate(db),
		tenantID,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, status domain.Status, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		status,
		now,
		tenantID,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertLine(ctx context.Context, db *gorm.DB, line *domain.OrderLine) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_lines (`+lineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		line.ID,
		line.TenantID,
		line.OrderID,
		line.SKUID,
		line.SKUCode,
		line.Quantity,
		line.BottlesPerCase,
		line.PriceListID,
		line.ResolvedPrice,
		line.UnitPrice,
		line.OverridePrice,
		line.PriceOverridden,
		line.OverrideReason,
		line.CreatedAt,
		line.UpdatedAt,
	).Error
}

func (r *repo) FindLineByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.OrderLine, error) {
	var line domain.OrderLine
	err := db.WithContext(ctx).Raw(
		`SELECT `+lineColumns+` FROM order_lines WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&line).Error
	if err != nil {
		return nil, err
	}
	if line.ID == 0 {
		return nil, nil
	}
	return &line, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, tenantID, orderID snowflake.ID) ([]domain.OrderLine, error) {
	var lines []domain.OrderLine
	err := db.WithContext(ctx).Raw(
		`SELECT `+lineColumns+` FROM order_lines WHERE tenant_id = ? AND order_id = ?
		 ORDER BY created_at ASC, id ASC`,
		tenantID,
		orderID,
	).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) UpdateLinePricing(ctx context.Context, db *gorm.DB, line *domain.OrderLine) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE order_lines
		 SET unit_price = ?, override_price = ?, price_overridden = ?, override_reason = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		line.UnitPrice,
		line.OverridePrice,
		line.PriceOverridden,
		line.OverrideReason,
		line.UpdatedAt,
		line.TenantID,
		line.ID,
	)
	return res.RowsAffected, res.Error
}
