package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/vintner/internal/audit/domain"
	"github.com/smallbiznis/vintner/internal/authorization"
	"github.com/smallbiznis/vintner/internal/clock"
	"github.com/smallbiznis/vintner/internal/config"
	"github.com/smallbiznis/vintner/internal/observability/logger"
	"github.com/smallbiznis/vintner/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/vintner/internal/order/domain"
	"github.com/smallbiznis/vintner/internal/override/domain"
	pricelistdomain "github.com/smallbiznis/vintner/internal/pricelist/domain"
	"github.com/smallbiznis/vintner/pkg/db/pagination"
	"github.com/smallbiznis/vintner/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Policy        *config.PolicyHolder
	Repo          domain.Repository
	OrderRepo     orderdomain.Repository
	PriceListRepo pricelistdomain.Repository
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	policy        *config.PolicyHolder
	repo          domain.Repository
	orderRepo     orderdomain.Repository
	priceListRepo pricelistdomain.Repository
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("override.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		policy:        p.Policy,
		repo:          p.Repo,
		orderRepo:     p.OrderRepo,
		priceListRepo: p.PriceListRepo,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		metrics:       p.Metrics,
	}
}

// RecordOverride appends a ledger entry and reprices the line in one
// transaction. The resolved price on the line is left untouched.
func (s *Service) RecordOverride(ctx context.Context, req domain.RecordOverrideRequest) (orderdomain.OrderLine, error) {
	if req.TenantID == 0 {
		return orderdomain.OrderLine{}, domain.ErrInvalidTenant
	}
	policy := s.policy.Get().Override

	reason := strings.TrimSpace(req.Reason)
	if reason == "" || len([]rune(reason)) < policy.MinReasonLength {
		return orderdomain.OrderLine{}, domain.ErrReasonRequired
	}
	if !req.Price.IsPositive() {
		return orderdomain.OrderLine{}, domain.ErrInvalidPrice
	}
	price := req.Price.Round(2)

	if err := s.authzSvc.Authorize(ctx, req.Actor, req.TenantID, authorization.ObjectOrderLine, authorization.ActionOverridePrice); err != nil {
		return orderdomain.OrderLine{}, err
	}

	metadata := datatypes.JSONMap{}
	if requestID := correlation.ExtractCorrelationID(ctx); requestID != "" {
		metadata["request_correlation_id"] = requestID
	}

	var (
		line  orderdomain.OrderLine
		entry domain.PriceOverride
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockedDraftLine(ctx, tx, req.TenantID, req.OrderLineID)
		if err != nil {
			return err
		}
		if current.UnitPrice.Equal(price) {
			return domain.ErrPriceUnchanged
		}
		if err := s.ensureOverridable(ctx, tx, *current); err != nil {
			return err
		}

		now := s.clock.Now()
		metadata["quantity"] = current.Quantity
		entry = domain.PriceOverride{
			ID:                s.genID.Generate(),
			CorrelationID:     ulid.Make().String(),
			TenantID:          current.TenantID,
			OrderID:           current.OrderID,
			OrderLineID:       current.ID,
			SKUID:             current.SKUID,
			SKUCode:           current.SKUCode,
			PriceListID:       current.PriceListID,
			ResolvedPrice:     current.ResolvedPrice,
			PreviousUnitPrice: current.UnitPrice,
			OverriddenPrice:   price,
			Reason:            reason,
			ActorID:           strings.TrimSpace(req.Actor.ID),
			ActorRole:         strings.ToLower(strings.TrimSpace(req.Actor.Role)),
			Metadata:          metadata,
			CreatedAt:         now,
		}
		if current.ResolvedPrice.Valid && current.ResolvedPrice.Decimal.IsPositive() {
			change := price.Sub(current.ResolvedPrice.Decimal).Div(current.ResolvedPrice.Decimal).Mul(hundred).Round(2)
			entry.ChangePercent = decimal.NullDecimal{Decimal: change, Valid: true}
			entry.RequiresApproval = change.Abs().GreaterThan(decimal.NewFromFloat(policy.LargeChangePercent))
		}
		if err := s.repo.Insert(ctx, tx, &entry); err != nil {
			return err
		}

		line = *current
		line.UnitPrice = price
		line.OverridePrice = decimal.NullDecimal{Decimal: price, Valid: true}
		line.PriceOverridden = true
		line.OverrideReason = &reason
		line.UpdatedAt = now
		_, err = s.orderRepo.UpdateLinePricing(ctx, tx, &line)
		return err
	})
	if err != nil {
		return orderdomain.OrderLine{}, err
	}

	s.metrics.RecordPriceOverride(ctx, entry.RequiresApproval)
	log := logger.WithContext(ctx, s.log)
	log.Info("price override recorded",
		zap.String("order_line_id", line.ID.String()),
		zap.String("correlation_id", entry.CorrelationID),
		zap.String("overridden_price", price.StringFixed(2)),
		zap.Bool("requires_approval", entry.RequiresApproval),
	)

	auditMeta := map[string]any{
		"correlation_id":      entry.CorrelationID,
		"sku_code":            entry.SKUCode,
		"previous_unit_price": entry.PreviousUnitPrice.StringFixed(2),
		"overridden_price":    price.StringFixed(2),
		"reason":              reason,
		"requires_approval":   entry.RequiresApproval,
	}
	if entry.ResolvedPrice.Valid {
		auditMeta["resolved_price"] = entry.ResolvedPrice.Decimal.StringFixed(2)
	}
	if err := s.auditSvc.AuditLog(ctx, req.TenantID, entry.ActorID, auditdomain.ActionPriceOverrideRecorded, "order_line", line.ID.String(), auditMeta); err != nil {
		log.Warn("audit price override failed", zap.Error(err))
	}
	return line, nil
}

// lockedDraftLine locks the line's order and reads the line under that lock.
// Only draft orders can be repriced; an invoiced order keeps what it charged.
func (s *Service) lockedDraftLine(ctx context.Context, tx *gorm.DB, tenantID, lineID snowflake.ID) (*orderdomain.OrderLine, error) {
	line, err := s.orderRepo.FindLineByID(ctx, tx, tenantID, lineID)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, orderdomain.ErrLineNotFound
	}
	order, err := s.orderRepo.LockOrder(ctx, tx, tenantID, line.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrNotFound
	}
	if order.Status != orderdomain.StatusDraft {
		return nil, orderdomain.ErrOrderNotDraft
	}
	line, err = s.orderRepo.FindLineByID(ctx, tx, tenantID, lineID)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, orderdomain.ErrLineNotFound
	}
	return line, nil
}

// ensureOverridable requires the line to have been priced from a list that
// allows manual overrides.
func (s *Service) ensureOverridable(ctx context.Context, tx *gorm.DB, line orderdomain.OrderLine) error {
	if line.PriceListID == nil {
		return domain.ErrOverrideNotAllowed
	}
	list, err := s.priceListRepo.FindListByID(ctx, tx, line.TenantID, *line.PriceListID)
	if err != nil {
		return err
	}
	if list == nil || !list.AllowManualOverride {
		return domain.ErrOverrideNotAllowed
	}
	return nil
}

func (s *Service) ListByOrderLine(ctx context.Context, tenantID, orderLineID snowflake.ID) ([]domain.PriceOverride, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	return s.repo.ListByOrderLine(ctx, s.db, tenantID, orderLineID)
}

func (s *Service) ListByOrder(ctx context.Context, tenantID, orderID snowflake.ID) ([]domain.PriceOverride, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	return s.repo.ListByOrder(ctx, s.db, tenantID, orderID)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.TenantID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidTenant
	}
	if req.From != nil && req.To != nil && req.From.After(*req.To) {
		return domain.ListResponse{}, domain.ErrInvalidTimeRange
	}

	decoded, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, domain.ErrInvalidPageToken
	}
	var cursor *domain.Cursor
	if decoded != nil {
		id, err := snowflake.ParseString(decoded.ID)
		if err != nil || id == 0 {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		cursor = &domain.Cursor{ID: id, CreatedAt: decoded.CreatedAt}
	}

	pageSize := req.Size()
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		TenantID: req.TenantID,
		From:     req.From,
		To:       req.To,
		ActorID:  req.ActorID,
		Cursor:   cursor,
		Limit:    pageSize,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, pageSize, func(item domain.PriceOverride) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String(), CreatedAt: item.CreatedAt}
	})
	return domain.ListResponse{PageInfo: pageInfo, Overrides: items}, nil
}
