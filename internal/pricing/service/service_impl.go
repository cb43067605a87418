package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/internal/clock"
	customerdomain "github.com/smallbiznis/vintner/internal/customer/domain"
	"github.com/smallbiznis/vintner/internal/observability/logger"
	"github.com/smallbiznis/vintner/internal/observability/metrics"
	"github.com/smallbiznis/vintner/internal/observability/tracing"
	pricelistdomain "github.com/smallbiznis/vintner/internal/pricelist/domain"
	"github.com/smallbiznis/vintner/internal/pricing/domain"
	"github.com/smallbiznis/vintner/internal/pricing/resolver"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	CustomerSvc   customerdomain.Service
	PriceListRepo pricelistdomain.Repository
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	customerSvc   customerdomain.Service
	priceListRepo pricelistdomain.Repository
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("pricing.service"),
		clock:         p.Clock,
		customerSvc:   p.CustomerSvc,
		priceListRepo: p.PriceListRepo,
		metrics:       p.Metrics,
	}
}

func (s *Service) ResolvePrice(ctx context.Context, req domain.ResolveRequest) (domain.PriceResolution, error) {
	if req.TenantID == 0 {
		return domain.PriceResolution{}, domain.ErrInvalidTenant
	}
	if req.Quantity < 1 {
		return domain.PriceResolution{}, domain.ErrInvalidQuantity
	}

	customer, err := s.customerSvc.GetByID(ctx, req.TenantID, req.CustomerID)
	if err != nil {
		return domain.PriceResolution{}, err
	}

	at := s.clock.Now()
	if req.At != nil {
		at = req.At.UTC()
	}
	return s.resolve(ctx, customer, req.SKUID, req.Quantity, at)
}

// ResolveForCustomer resolves against an already loaded customer record.
func (s *Service) ResolveForCustomer(ctx context.Context, customer customerdomain.Customer, skuID snowflake.ID, quantity int) (domain.PriceResolution, error) {
	if customer.TenantID == 0 {
		return domain.PriceResolution{}, domain.ErrInvalidTenant
	}
	return s.resolve(ctx, customer, skuID, quantity, s.clock.Now())
}

func (s *Service) resolve(ctx context.Context, customer customerdomain.Customer, skuID snowflake.ID, quantity int, at time.Time) (domain.PriceResolution, error) {
	ctx, span := tracing.Start(ctx, "pricing.resolve",
		attribute.String("sku_id", skuID.String()),
		attribute.Int("quantity", quantity),
	)
	defer span.End()

	catalog, err := s.priceListRepo.ListActiveForTenant(ctx, s.db, customer.TenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load catalog")
		s.metrics.RecordPriceResolution(ctx, "error", "")
		return domain.PriceResolution{}, err
	}

	resolution, err := resolver.Resolve(catalog, customer, skuID, quantity, at)
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrPriceNotFound) {
			outcome = "not_found"
		}
		s.metrics.RecordPriceResolution(ctx, outcome, "")
		logger.WithContext(ctx, s.log).Debug("price not resolved",
			zap.String("customer_id", customer.ID.String()),
			zap.String("sku_id", skuID.String()),
			zap.Int("quantity", quantity),
			zap.Error(err),
		)
		return domain.PriceResolution{}, err
	}

	span.SetAttributes(
		attribute.String("price_list_id", resolution.PriceListID.String()),
		attribute.String("jurisdiction_type", string(resolution.JurisdictionType)),
	)
	s.metrics.RecordPriceResolution(ctx, "resolved", string(resolution.JurisdictionType))
	return resolution, nil
}
