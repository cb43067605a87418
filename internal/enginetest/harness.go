// Package enginetest wires the pricing and invoicing services on an in-memory
// SQLite database for tests.
package enginetest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/vintner/internal/audit/domain"
	auditrepo "github.com/smallbiznis/vintner/internal/audit/repository"
	auditservice "github.com/smallbiznis/vintner/internal/audit/service"
	"github.com/smallbiznis/vintner/internal/authorization"
	"github.com/smallbiznis/vintner/internal/clock"
	"github.com/smallbiznis/vintner/internal/config"
	customerdomain "github.com/smallbiznis/vintner/internal/customer/domain"
	customerrepo "github.com/smallbiznis/vintner/internal/customer/repository"
	customerservice "github.com/smallbiznis/vintner/internal/customer/service"
	invoicedomain "github.com/smallbiznis/vintner/internal/invoice/domain"
	"github.com/smallbiznis/vintner/internal/invoice/render"
	invoicerepo "github.com/smallbiznis/vintner/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/vintner/internal/invoice/service"
	"github.com/smallbiznis/vintner/internal/migration"
	"github.com/smallbiznis/vintner/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/vintner/internal/order/domain"
	orderrepo "github.com/smallbiznis/vintner/internal/order/repository"
	orderservice "github.com/smallbiznis/vintner/internal/order/service"
	overridedomain "github.com/smallbiznis/vintner/internal/override/domain"
	overriderepo "github.com/smallbiznis/vintner/internal/override/repository"
	overrideservice "github.com/smallbiznis/vintner/internal/override/service"
	pricelistdomain "github.com/smallbiznis/vintner/internal/pricelist/domain"
	pricelistrepo "github.com/smallbiznis/vintner/internal/pricelist/repository"
	pricelistservice "github.com/smallbiznis/vintner/internal/pricelist/service"
	pricingdomain "github.com/smallbiznis/vintner/internal/pricing/domain"
	pricingservice "github.com/smallbiznis/vintner/internal/pricing/service"
	"github.com/smallbiznis/vintner/pkg/db/dbtest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Harness struct {
	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   *clock.FakeClock
	Policy  *config.PolicyHolder
	Metrics *metrics.Metrics

	Audit      auditdomain.Service
	Authz      authorization.Service
	Customers  customerdomain.Service
	PriceLists pricelistdomain.Service
	Pricing    pricingdomain.Service
	Orders     orderdomain.Service
	Overrides  overridedomain.Service
	Invoices   invoicedomain.Service

	OrderRepo     orderdomain.Repository
	PriceListRepo pricelistdomain.Repository
	InvoiceRepo   invoicedomain.Repository
}

// New builds a harness on a fresh database. Extra models are migrated too.
func New(t testing.TB, policy config.Policy, extra ...any) *Harness {
	t.Helper()

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	db := dbtest.Open(t, append(migration.Models(), extra...)...)

	h := &Harness{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Policy:        config.NewStaticPolicyHolder(policy),
		Metrics:       metrics.NewNoop(),
		OrderRepo:     orderrepo.Provide(),
		PriceListRepo: pricelistrepo.Provide(),
		InvoiceRepo:   invoicerepo.Provide(),
	}

	h.Audit = auditservice.NewService(auditservice.Params{DB: db, Log: h.Log, GenID: node, Repo: auditrepo.Provide()})

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	h.Authz = authorization.NewService(authorization.Params{Log: h.Log, Enforcer: enforcer, AuditSvc: h.Audit})

	h.Customers = customerservice.New(customerservice.Params{
		DB: db, Log: h.Log, GenID: node, Clock: h.Clock, Repo: customerrepo.Provide(),
	})
	h.PriceLists = pricelistservice.New(pricelistservice.Params{
		DB: db, Log: h.Log, GenID: node, Clock: h.Clock, Policy: h.Policy,
		Repo: h.PriceListRepo, AuthzSvc: h.Authz, AuditSvc: h.Audit, Metrics: h.Metrics,
	})
	h.Pricing = pricingservice.New(pricingservice.Params{
		DB: db, Log: h.Log, Clock: h.Clock, CustomerSvc: h.Customers,
		PriceListRepo: h.PriceListRepo, Metrics: h.Metrics,
	})
	h.Overrides = overrideservice.New(overrideservice.Params{
		DB: db, Log: h.Log, GenID: node, Clock: h.Clock, Policy: h.Policy,
		Repo: overriderepo.Provide(), OrderRepo: h.OrderRepo, PriceListRepo: h.PriceListRepo,
		AuthzSvc: h.Authz, AuditSvc: h.Audit, Metrics: h.Metrics,
	})
	h.Orders = orderservice.New(orderservice.Params{
		DB: db, Log: h.Log, GenID: node, Clock: h.Clock, Repo: h.OrderRepo,
		CustomerSvc: h.Customers, PricingSvc: h.Pricing, OverrideSvc: h.Overrides,
	})
	h.Invoices = h.InvoiceService(nil, nil)
	return h
}

// InvoiceService builds an invoice service sharing the harness database,
// optionally behind a sequence lock and with sequencer metrics.
func (h *Harness) InvoiceService(locker invoicedomain.SequenceLocker, seqMetrics *metrics.SequencerMetrics) invoicedomain.Service {
	return invoiceservice.New(invoiceservice.Params{
		DB: h.DB, Log: h.Log, GenID: h.GenID, Clock: h.Clock, Policy: h.Policy,
		Repo: h.InvoiceRepo, OrderRepo: h.OrderRepo, PriceListRepo: h.PriceListRepo,
		CustomerSvc: h.Customers, AuthzSvc: h.Authz, AuditSvc: h.Audit, Renderer: render.NewRenderer(),
		Locker: locker, Metrics: h.Metrics, SeqMetrics: seqMetrics,
	})
}

func (h *Harness) Customer(t testing.TB, req customerdomain.CreateCustomerRequest) customerdomain.Customer {
	t.Helper()
	customer, err := h.Customers.Create(context.Background(), req)
	require.NoError(t, err)
	return customer
}

// Tier is a (minQuantity, price) pair; MaxQuantity stays unbounded.
type Tier struct {
	Min   int
	Price string
}

func (h *Harness) PriceList(t testing.TB, req pricelistdomain.CreatePriceListRequest, sku snowflake.ID, tiers ...Tier) pricelistdomain.PriceList {
	t.Helper()
	ctx := context.Background()
	list, err := h.PriceLists.CreatePriceList(ctx, req)
	require.NoError(t, err)
	for _, tier := range tiers {
		_, err := h.PriceLists.AddItem(ctx, pricelistdomain.AddItemRequest{
			TenantID:    req.TenantID,
			PriceListID: list.ID,
			SKUID:       sku,
			SKUCode:     "SKU-" + sku.String(),
			Price:       decimal.RequireFromString(tier.Price),
			MinQuantity: tier.Min,
		})
		require.NoError(t, err)
	}
	return list
}

func (h *Harness) Order(t testing.TB, tenantID, customerID snowflake.ID, delivery time.Time) orderdomain.Order {
	t.Helper()
	order, err := h.Orders.CreateOrder(context.Background(), orderdomain.CreateOrderRequest{
		TenantID:     tenantID,
		CustomerID:   customerID,
		DeliveryDate: delivery,
	})
	require.NoError(t, err)
	return order
}
