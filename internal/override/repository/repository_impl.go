package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/internal/override/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.PriceOverride) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO price_overrides (
			id, correlation_id, tenant_id, order_id, order_line_id, sku_id, sku_code, price_list_id,
			resolved_price, previous_unit_price, overridden_price, change_percent, reason,
			actor_id, actor_role, requires_approval, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.CorrelationID,
		entry.TenantID,
		entry.OrderID,
		entry.OrderLineID,
		entry.SKUID,
		entry.SKUCode,
		entry.PriceListID,
		entry.ResolvedPrice,
		entry.PreviousUnitPrice,
		entry.OverriddenPrice,
		entry.ChangePercent,
		entry.Reason,
		entry.ActorID,
		entry.ActorRole,
		entry.RequiresApproval,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListByOrderLine(ctx context.Context, db *gorm.DB, tenantID, orderLineID snowflake.ID) ([]domain.PriceOverride, error) {
	var entries []domain.PriceOverride
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND order_line_id = ?", tenantID, orderLineID).
		Order("created_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListByOrder(ctx context.Context, db *gorm.DB, tenantID, orderID snowflake.ID) ([]domain.PriceOverride, error) {
	var entries []domain.PriceOverride
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("created_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.PriceOverride, error) {
	stmt := db.WithContext(ctx).Model(&domain.PriceOverride{}).
		Where("tenant_id = ?", filter.TenantID)

	if filter.From != nil {
		stmt = stmt.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		stmt = stmt.Where("created_at <= ?", filter.To.UTC())
	}
	if actorID := strings.TrimSpace(filter.ActorID); actorID != "" {
		stmt = stmt.Where("actor_id = ?", actorID)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var entries []domain.PriceOverride
	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
