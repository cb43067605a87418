package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vintner/internal/audit"
	auditdomain "github.com/smallbiznis/vintner/internal/audit/domain"
	"github.com/smallbiznis/vintner/internal/authorization"
	"github.com/smallbiznis/vintner/internal/clock"
	"github.com/smallbiznis/vintner/internal/config"
	"github.com/smallbiznis/vintner/internal/customer"
	customerdomain "github.com/smallbiznis/vintner/internal/customer/domain"
	"github.com/smallbiznis/vintner/internal/distlock"
	"github.com/smallbiznis/vintner/internal/invoice"
	invoicedomain "github.com/smallbiznis/vintner/internal/invoice/domain"
	"github.com/smallbiznis/vintner/internal/migration"
	"github.com/smallbiznis/vintner/internal/observability"
	"github.com/smallbiznis/vintner/internal/order"
	orderdomain "github.com/smallbiznis/vintner/internal/order/domain"
	"github.com/smallbiznis/vintner/internal/override"
	overridedomain "github.com/smallbiznis/vintner/internal/override/domain"
	"github.com/smallbiznis/vintner/internal/pricelist"
	pricelistdomain "github.com/smallbiznis/vintner/internal/pricelist/domain"
	"github.com/smallbiznis/vintner/internal/pricing"
	pricingdomain "github.com/smallbiznis/vintner/internal/pricing/domain"
	"github.com/smallbiznis/vintner/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	app   *fx.App
	db    *gorm.DB
	genID *snowflake.Node
	dir   string

	customers  customerdomain.Service
	priceLists pricelistdomain.Service
	pricing    pricingdomain.Service
	orders     orderdomain.Service
	overrides  overridedomain.Service
	invoices   invoicedomain.Service
	audit      auditdomain.Service
}

var (
	env *testEnv

	manager  = authorization.Actor{ID: "501", Role: authorization.RoleManager}
	salesRep = authorization.Actor{ID: "502", Role: authorization.RoleSalesRep}
	delivery = time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "vintner-e2e-")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create temp dir:", err)
		os.Exit(1)
	}
	setDefaultEnv(dir)

	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		_ = os.RemoveAll(dir)
		os.Exit(1)
	}
	env.dir = dir

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func TestE2E_OrderToInvoice(t *testing.T) {
	resetDatabase(t, env.db)
	ctx := context.Background()
	tenant := env.genID.Generate()
	sku := env.genID.Generate()

	houseList(t, tenant, sku)
	buyer := createCustomer(t, customerdomain.CreateCustomerRequest{
		TenantID: tenant, Name: "Harbor Wine & Spirits", State: "MD", PaymentTermsDays: 30,
	})

	ord, err := env.orders.CreateOrder(ctx, orderdomain.CreateOrderRequest{
		TenantID: tenant, CustomerID: buyer.ID, DeliveryDate: delivery,
	})
	require.NoError(t, err)

	line, err := env.orders.AddLine(ctx, orderdomain.AddLineRequest{
		TenantID: tenant, OrderID: ord.ID, SKUID: sku, SKUCode: "CAB-750", Quantity: 106, Actor: salesRep,
	})
	require.NoError(t, err)
	assert.Equal(t, "10.00", line.UnitPrice.StringFixed(2))

	line, err = env.overrides.RecordOverride(ctx, overridedomain.RecordOverrideRequest{
		TenantID:    tenant,
		OrderLineID: line.ID,
		Price:       decimal.RequireFromString("9.50"),
		Reason:      "competitor price match",
		Actor:       manager,
	})
	require.NoError(t, err)
	assert.Equal(t, "9.50", line.UnitPrice.StringFixed(2))

	inv, err := env.invoices.IssueInvoice(ctx, invoicedomain.IssueInvoiceRequest{
		TenantID: tenant, OrderID: ord.ID, Actor: manager,
	})
	require.NoError(t, err)
	assert.Equal(t, "MD2600001", inv.InvoiceNumber)
	assert.Equal(t, "1007.00", inv.Subtotal.StringFixed(2))
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "8.83 cs / 106 btl", inv.Items[0].QuantityLabel)
	assert.True(t, inv.Items[0].PriceOverridden)

	entries, err := env.overrides.ListByOrder(ctx, tenant, ord.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "10.00", entries[0].PreviousUnitPrice.StringFixed(2))
	assert.Equal(t, "9.50", entries[0].OverriddenPrice.StringFixed(2))

	reloaded, err := env.orders.GetOrder(ctx, tenant, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusInvoiced, reloaded.Status)

	_, err = env.orders.AddLine(ctx, orderdomain.AddLineRequest{
		TenantID: tenant, OrderID: ord.ID, SKUID: sku, Quantity: 12, Actor: salesRep,
	})
	assert.ErrorIs(t, err, orderdomain.ErrOrderNotDraft)

	assert.Equal(t, int64(1), countRows(t, env.db, "audit_logs", "tenant_id = ? AND action = ?", tenant, auditdomain.ActionPriceOverrideRecorded))
	assert.Equal(t, int64(1), countRows(t, env.db, "audit_logs", "tenant_id = ? AND action = ?", tenant, auditdomain.ActionInvoiceIssued))
}

func TestE2E_SalesRepCannotOverride(t *testing.T) {
	resetDatabase(t, env.db)
	ctx := context.Background()
	tenant := env.genID.Generate()
	sku := env.genID.Generate()

	houseList(t, tenant, sku)
	buyer := createCustomer(t, customerdomain.CreateCustomerRequest{TenantID: tenant, Name: "Old Line Liquors", State: "MD"})
	ord, err := env.orders.CreateOrder(ctx, orderdomain.CreateOrderRequest{
		TenantID: tenant, CustomerID: buyer.ID, DeliveryDate: delivery,
	})
	require.NoError(t, err)
	line, err := env.orders.AddLine(ctx, orderdomain.AddLineRequest{
		TenantID: tenant, OrderID: ord.ID, SKUID: sku, Quantity: 24, Actor: salesRep,
	})
	require.NoError(t, err)

	_, err = env.overrides.RecordOverride(ctx, overridedomain.RecordOverrideRequest{
		TenantID:    tenant,
		OrderLineID: line.ID,
		Price:       decimal.RequireFromString("8.00"),
		Reason:      "friend of the owner",
		Actor:       salesRep,
	})
	require.Error(t, err)

	assert.Equal(t, int64(0), countRows(t, env.db, "price_overrides", "tenant_id = ?", tenant))
}

func TestE2E_InvoiceNumbersPerJurisdiction(t *testing.T) {
	resetDatabase(t, env.db)
	ctx := context.Background()
	tenant := env.genID.Generate()
	sku := env.genID.Generate()
	houseList(t, tenant, sku)

	dc := "DC"
	buyers := []customerdomain.CreateCustomerRequest{
		{TenantID: tenant, Name: "Chesapeake Cellars", State: "MD"},
		{TenantID: tenant, Name: "Potomac Provisions", State: "VA"},
		{TenantID: tenant, Name: "Bethesda Bottle Shop", State: "MD", InvoiceStateCode: &dc},
		{TenantID: tenant, Name: "Annapolis Yacht Club", State: "MD", IsTaxExempt: true},
		{TenantID: tenant, Name: "Fells Point Tavern", State: "MD"},
	}
	want := []string{"MD2600001", "VA2600001", "DC2600001", "TE2600001", "MD2600002"}

	for i, req := range buyers {
		buyer := createCustomer(t, req)
		ord, err := env.orders.CreateOrder(ctx, orderdomain.CreateOrderRequest{
			TenantID: tenant, CustomerID: buyer.ID, DeliveryDate: delivery,
		})
		require.NoError(t, err)
		_, err = env.orders.AddLine(ctx, orderdomain.AddLineRequest{
			TenantID: tenant, OrderID: ord.ID, SKUID: sku, Quantity: 12, Actor: salesRep,
		})
		require.NoError(t, err)

		inv, err := env.invoices.IssueInvoice(ctx, invoicedomain.IssueInvoiceRequest{TenantID: tenant, OrderID: ord.ID, Actor: salesRep})
		require.NoError(t, err)
		assert.Equal(t, want[i], inv.InvoiceNumber, req.Name)
	}

	found, err := env.invoices.GetByNumber(ctx, tenant, "MD2600002")
	require.NoError(t, err)
	assert.Equal(t, "MD26", found.Prefix)

	listed, err := env.invoices.ListInvoices(ctx, invoicedomain.ListInvoiceRequest{TenantID: tenant, Prefix: "md26"})
	require.NoError(t, err)
	assert.Len(t, listed.Invoices, 2)
}

func TestE2E_PriceResolution(t *testing.T) {
	resetDatabase(t, env.db)
	ctx := context.Background()
	tenant := env.genID.Generate()
	sku := env.genID.Generate()
	houseList(t, tenant, sku)

	stateList, err := env.priceLists.CreatePriceList(ctx, pricelistdomain.CreatePriceListRequest{
		TenantID: tenant, Name: "Virginia", JurisdictionType: pricelistdomain.JurisdictionState, JurisdictionValue: "VA",
	})
	require.NoError(t, err)
	_, err = env.priceLists.AddItem(ctx, pricelistdomain.AddItemRequest{
		TenantID: tenant, PriceListID: stateList.ID, SKUID: sku, SKUCode: "CAB-750",
		Price: decimal.RequireFromString("11.25"), MinQuantity: 1,
	})
	require.NoError(t, err)

	virginia := createCustomer(t, customerdomain.CreateCustomerRequest{TenantID: tenant, Name: "Potomac Provisions", State: "VA"})
	maryland := createCustomer(t, customerdomain.CreateCustomerRequest{TenantID: tenant, Name: "Chesapeake Cellars", State: "MD"})

	res, err := env.pricing.ResolveForCustomer(ctx, virginia, sku, 6)
	require.NoError(t, err)
	assert.Equal(t, "11.25", res.Price.StringFixed(2))
	assert.Equal(t, stateList.ID, res.PriceListID)

	res, err = env.pricing.ResolveForCustomer(ctx, maryland, sku, 6)
	require.NoError(t, err)
	assert.Equal(t, "12.00", res.Price.StringFixed(2))

	res, err = env.pricing.ResolveForCustomer(ctx, maryland, sku, 30)
	require.NoError(t, err)
	assert.Equal(t, "10.00", res.Price.StringFixed(2))
}

func startEnv() (*testEnv, error) {
	var (
		dbConn     *gorm.DB
		cfg        config.Config
		log        *zap.Logger
		genID      *snowflake.Node
		customers  customerdomain.Service
		priceLists pricelistdomain.Service
		pricingSvc pricingdomain.Service
		orders     orderdomain.Service
		overrides  overridedomain.Service
		invoices   invoicedomain.Service
		auditSvc   auditdomain.Service
	)

	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,
		distlock.Module,
		migration.Module,
		audit.Module,
		authorization.Module,
		customer.Module,
		pricelist.Module,
		pricing.Module,
		override.Module,
		order.Module,
		invoice.Module,
		fx.Provide(func(cfg config.Config) (*snowflake.Node, error) {
			return snowflake.NewNode(cfg.NodeID)
		}),
		fx.Populate(&dbConn, &cfg, &log, &genID, &customers, &priceLists, &pricingSvc, &orders, &overrides, &invoices, &auditSvc),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	if strings.ToLower(strings.TrimSpace(cfg.DBType)) != "sqlite" {
		_ = app.Stop(context.Background())
		return nil, fmt.Errorf("expected sqlite db, got %s", cfg.DBType)
	}
	log.Debug("e2e environment started", zap.String("database", cfg.DBName))

	return &testEnv{
		app:        app,
		db:         dbConn,
		genID:      genID,
		customers:  customers,
		priceLists: priceLists,
		pricing:    pricingSvc,
		orders:     orders,
		overrides:  overrides,
		invoices:   invoices,
		audit:      auditSvc,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if e.app != nil {
		_ = e.app.Stop(ctx)
	}
	if e.dir != "" {
		_ = os.RemoveAll(e.dir)
	}
}

func setDefaultEnv(dir string) {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("DATABASE_TYPE", "sqlite")
	setEnvIfEmpty("DATABASE_NAME", filepath.Join(dir, "vintner.db"))
	// SQLite serialises writers; one connection keeps the engine's
	// transactions from tripping over each other.
	setEnvIfEmpty("DATABASE_MAX_OPEN_CONN", "1")
	setEnvIfEmpty("DATABASE_MAX_IDLE_CONN", "1")
	setEnvIfEmpty("REDIS_ENABLED", "false")
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

func resetDatabase(t *testing.T, dbConn *gorm.DB) {
	t.Helper()
	if err := truncateAllTables(dbConn); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

// truncateAllTables clears engine data. Role policies live in casbin_rule
// and are kept.
func truncateAllTables(dbConn *gorm.DB) error {
	var tables []string
	if err := dbConn.Raw(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name <> 'casbin_rule'`,
	).Scan(&tables).Error; err != nil {
		return err
	}
	for _, table := range tables {
		if strings.TrimSpace(table) == "" {
			continue
		}
		if err := dbConn.Exec(fmt.Sprintf(`DELETE FROM "%s"`, table)).Error; err != nil {
			return err
		}
	}
	return nil
}

func houseList(t *testing.T, tenant, sku snowflake.ID) pricelistdomain.PriceList {
	t.Helper()
	ctx := context.Background()
	list, err := env.priceLists.CreatePriceList(ctx, pricelistdomain.CreatePriceListRequest{
		TenantID:            tenant,
		Name:                "House",
		JurisdictionType:    pricelistdomain.JurisdictionDefault,
		AllowManualOverride: true,
		IsDefault:           true,
	})
	require.NoError(t, err)
	for _, tier := range []struct {
		min   int
		price string
	}{{1, "12.00"}, {24, "10.00"}} {
		_, err := env.priceLists.AddItem(ctx, pricelistdomain.AddItemRequest{
			TenantID:    tenant,
			PriceListID: list.ID,
			SKUID:       sku,
			SKUCode:     "CAB-750",
			Price:       decimal.RequireFromString(tier.price),
			MinQuantity: tier.min,
		})
		require.NoError(t, err)
	}
	return list
}

func createCustomer(t *testing.T, req customerdomain.CreateCustomerRequest) customerdomain.Customer {
	t.Helper()
	c, err := env.customers.Create(context.Background(), req)
	require.NoError(t, err)
	return c
}

func countRows(t *testing.T, dbConn *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := dbConn.Table(table).Where(where, args...).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
