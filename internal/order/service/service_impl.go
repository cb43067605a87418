package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vintner/internal/clock"
	customerdomain "github.com/smallbiznis/vintner/internal/customer/domain"
	"github.com/smallbiznis/vintner/internal/observability/logger"
	"github.com/smallbiznis/vintner/internal/order/domain"
	overridedomain "github.com/smallbiznis/vintner/internal/override/domain"
	pricingdomain "github.com/smallbiznis/vintner/internal/pricing/domain"
	"github.com/smallbiznis/vintner/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	CustomerSvc customerdomain.Service
	PricingSvc  pricingdomain.Service
	OverrideSvc overridedomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	customerSvc customerdomain.Service
	pricingSvc  pricingdomain.Service
	overrideSvc overridedomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		customerSvc: p.CustomerSvc,
		pricingSvc:  p.PricingSvc,
		overrideSvc: p.OverrideSvc,
	}
}

func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	if req.TenantID == 0 {
		return domain.Order{}, domain.ErrInvalidTenant
	}
	if err := validation.Struct(req); err != nil {
		return domain.Order{}, err
	}
	if _, err := s.customerSvc.GetByID(ctx, req.TenantID, req.CustomerID); err != nil {
		return domain.Order{}, err
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:           s.genID.Generate(),
		TenantID:     req.TenantID,
		CustomerID:   req.CustomerID,
		DeliveryDate: req.DeliveryDate.UTC(),
		Status:       domain.StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.InsertOrder(ctx, s.db, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// AddLine prices a new line from the catalog. When no tier applies the line
// needs ManualPrice; a zero price is never assumed. A requested override is
// recorded after the line exists, so on override failure the returned line
// carries the resolved price together with the error.
func (s *Service) AddLine(ctx context.Context, req domain.AddLineRequest) (domain.OrderLine, error) {
	log := logger.WithContext(ctx, s.log)
	if req.TenantID == 0 {
		return domain.OrderLine{}, domain.ErrInvalidTenant
	}
	if req.Quantity < 1 {
		return domain.OrderLine{}, domain.ErrInvalidQuantity
	}
	if err := validation.Struct(req); err != nil {
		return domain.OrderLine{}, err
	}

	order, err := s.repo.FindOrderByID(ctx, s.db, req.TenantID, req.OrderID)
	if err != nil {
		return domain.OrderLine{}, err
	}
	if order == nil {
		return domain.OrderLine{}, domain.ErrNotFound
	}
	if order.Status != domain.StatusDraft {
		return domain.OrderLine{}, domain.ErrOrderNotDraft
	}
	customer, err := s.customerSvc.GetByID(ctx, req.TenantID, order.CustomerID)
	if err != nil {
		return domain.OrderLine{}, err
	}

	now := s.clock.Now()
	line := domain.OrderLine{
		ID:             s.genID.Generate(),
		TenantID:       req.TenantID,
		OrderID:        order.ID,
		SKUID:          req.SKUID,
		SKUCode:        strings.TrimSpace(req.SKUCode),
		Quantity:       req.Quantity,
		BottlesPerCase: req.BottlesPerCase,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	resolution, err := s.pricingSvc.ResolveForCustomer(ctx, customer, req.SKUID, req.Quantity)
	switch {
	case err == nil:
		if req.ManualPrice != nil {
			return domain.OrderLine{}, domain.ErrManualPriceConflict
		}
		listID := resolution.PriceListID
		line.PriceListID = &listID
		line.ResolvedPrice = decimal.NullDecimal{Decimal: resolution.Price, Valid: true}
		line.UnitPrice = resolution.Price
	case errors.Is(err, pricingdomain.ErrPriceNotFound):
		if req.ManualPrice == nil {
			return domain.OrderLine{}, err
		}
		if req.ManualPrice.IsNegative() {
			return domain.OrderLine{}, domain.ErrInvalidManualPrice
		}
		line.UnitPrice = req.ManualPrice.Round(2)
	default:
		return domain.OrderLine{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.LockOrder(ctx, tx, req.TenantID, order.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrNotFound
		}
		if locked.Status != domain.StatusDraft {
			return domain.ErrOrderNotDraft
		}
		return s.repo.InsertLine(ctx, tx, &line)
	})
	if err != nil {
		return domain.OrderLine{}, err
	}
	log.Debug("order line added",
		zap.String("order_id", order.ID.String()),
		zap.String("line_id", line.ID.String()),
		zap.Bool("manually_priced", !line.ResolvedPrice.Valid),
	)

	if req.Override == nil {
		return line, nil
	}
	overridden, err := s.overrideSvc.RecordOverride(ctx, overridedomain.RecordOverrideRequest{
		TenantID:    req.TenantID,
		OrderLineID: line.ID,
		Price:       req.Override.Price,
		Reason:      req.Override.Reason,
		Actor:       req.Actor,
	})
	if err != nil {
		return line, fmt.Errorf("override rejected: %w", err)
	}
	return overridden, nil
}

func (s *Service) GetOrder(ctx context.Context, tenantID, id snowflake.ID) (domain.Order, error) {
	if tenantID == 0 {
		return domain.Order{}, domain.ErrInvalidTenant
	}
	order, err := s.repo.FindOrderByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	lines, err := s.repo.ListLines(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines
	return *order, nil
}
