package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vintner/internal/pricelist/domain"
	dbpkg "github.com/smallbiznis/vintner/pkg/db"
	"gorm.io/gorm"
)

const listColumns = `id, tenant_id, name, jurisdiction_type, jurisdiction_value, allow_manual_override,
	is_default, is_active, currency, expires_at, created_at, updated_at`

const itemColumns = `id, tenant_id, price_list_id, sku_id, sku_code, price, min_quantity, max_quantity,
	created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertList(ctx context.Context, db *gorm.DB, list *domain.PriceList) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO price_lists (`+listColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		list.ID,
		list.TenantID,
		list.Name,
		list.JurisdictionType,
		list.JurisdictionValue,
		list.AllowManualOverride,
		list.IsDefault,
		list.IsActive,
		list.Currency,
		list.ExpiresAt,
		list.CreatedAt,
		list.UpdatedAt,
	).Error
}

func (r *repo) FindListByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.PriceList, error) {
	var list domain.PriceList
	err := db.WithContext(ctx).Raw(
		`SELECT `+listColumns+` FROM price_lists WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&list).Error
	if err != nil {
		return nil, err
	}
	if list.ID == 0 {
		return nil, nil
	}
	return &list, nil
}

func (r *repo) LockList(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.PriceList, error) {
	var list domain.PriceList
	err := db.WithContext(ctx).Raw(
		`SELECT `+listColumns+` FROM price_lists WHERE tenant_id = ? AND id = ?`+dbpkg.ForUpdate(db),
		tenantID,
		id,
	).Scan(&list).Error
	if err != nil {
		return nil, err
	}
	if list.ID == 0 {
		return nil, nil
	}
	return &list, nil
}

func (r *repo) FindActiveDefault(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*domain.PriceList, error) {
	var list domain.PriceList
	err := db.WithContext(ctx).Raw(
		`SELECT `+listColumns+` FROM price_lists
		 WHERE tenant_id = ? AND is_default = ? AND is_active = ?
		 ORDER BY created_at ASC, id ASC LIMIT 1`,
		tenantID,
		true,
		true,
	).Scan(&list).Error
	if err != nil {
		return nil, err
	}
	if list.ID == 0 {
		return nil, nil
	}
	return &list, nil
}

func (r *repo) ListLists(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, activeOnly bool) ([]domain.PriceList, error) {
	query := `SELECT ` + listColumns + ` FROM price_lists WHERE tenant_id = ?`
	args := []any{tenantID}
	if activeOnly {
		query += ` AND is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	var lists []domain.PriceList
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&lists).Error; err != nil {
		return nil, err
	}
	return lists, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, active bool, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE price_lists SET is_active = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		active,
		now,
		tenantID,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.PriceListItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO price_list_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.TenantID,
		item.PriceListID,
		item.SKUID,
		item.SKUCode,
		item.Price,
		item.MinQuantity,
		item.MaxQuantity,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, tenantID, priceListID snowflake.ID) ([]domain.PriceListItem, error) {
	var items []domain.PriceListItem
	err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM price_list_items
		 WHERE tenant_id = ? AND price_list_id = ?
		 ORDER BY sku_id ASC, min_quantity ASC`,
		tenantID,
		priceListID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListItemsBySKU(ctx context.Context, db *gorm.DB, tenantID, priceListID snowflake.ID, skuIDs []snowflake.ID) ([]domain.PriceListItem, error) {
	if len(skuIDs) == 0 {
		return nil, nil
	}
	var items []domain.PriceListItem
	err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM price_list_items
		 WHERE tenant_id = ? AND price_list_id = ? AND sku_id IN ?
		 ORDER BY sku_id ASC, min_quantity ASC`,
		tenantID,
		priceListID,
		skuIDs,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateItemPrice(ctx context.Context, db *gorm.DB, tenantID, itemID snowflake.ID, price decimal.Decimal, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE price_list_items SET price = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		price,
		now,
		tenantID,
		itemID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ListActiveForTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.PriceList, error) {
	lists, err := r.ListLists(ctx, db, tenantID, true)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return nil, nil
	}

	ids := make([]snowflake.ID, 0, len(lists))
	for _, list := range lists {
		ids = append(ids, list.ID)
	}

	var items []domain.PriceListItem
	err = db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM price_list_items
		 WHERE tenant_id = ? AND price_list_id IN ?
		 ORDER BY price_list_id ASC, sku_id ASC, min_quantity ASC`,
		tenantID,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	byList := make(map[snowflake.ID][]domain.PriceListItem, len(lists))
	for _, item := range items {
		byList[item.PriceListID] = append(byList[item.PriceListID], item)
	}
	for i := range lists {
		lists[i].Items = byList[lists[i].ID]
	}
	return lists, nil
}
