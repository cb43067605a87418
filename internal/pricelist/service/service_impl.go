package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/vintner/internal/audit/domain"
	"github.com/smallbiznis/vintner/internal/authorization"
	"github.com/smallbiznis/vintner/internal/clock"
	"github.com/smallbiznis/vintner/internal/config"
	"github.com/smallbiznis/vintner/internal/observability/logger"
	"github.com/smallbiznis/vintner/internal/observability/metrics"
	"github.com/smallbiznis/vintner/internal/pricelist/domain"
	dbpkg "github.com/smallbiznis/vintner/pkg/db"
	"github.com/smallbiznis/vintner/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCurrency = "USD"

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Policy   *config.PolicyHolder
	Repo     domain.Repository
	AuthzSvc authorization.Service
	AuditSvc auditdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	policy   *config.PolicyHolder
	repo     domain.Repository
	authzSvc authorization.Service
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("pricelist.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		policy:   p.Policy,
		repo:     p.Repo,
		authzSvc: p.AuthzSvc,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) CreatePriceList(ctx context.Context, req domain.CreatePriceListRequest) (domain.PriceList, error) {
	if req.TenantID == 0 {
		return domain.PriceList{}, domain.ErrInvalidTenant
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.PriceList{}, domain.ErrInvalidName
	}
	req.JurisdictionType = domain.JurisdictionType(strings.ToUpper(strings.TrimSpace(string(req.JurisdictionType))))
	if !req.JurisdictionType.Valid() {
		return domain.PriceList{}, domain.ErrInvalidJurisdiction
	}
	req.JurisdictionValue = strings.TrimSpace(req.JurisdictionValue)
	switch req.JurisdictionType {
	case domain.JurisdictionDefault:
		req.IsDefault = true
	case domain.JurisdictionState:
		req.JurisdictionValue = strings.ToUpper(req.JurisdictionValue)
	}
	if req.JurisdictionType != domain.JurisdictionDefault && req.JurisdictionValue == "" {
		return domain.PriceList{}, domain.ErrInvalidJurisdiction
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}
	if err := validation.Struct(req); err != nil {
		return domain.PriceList{}, err
	}

	now := s.clock.Now()
	list := domain.PriceList{
		ID:                  s.genID.Generate(),
		TenantID:            req.TenantID,
		Name:                req.Name,
		JurisdictionType:    req.JurisdictionType,
		JurisdictionValue:   req.JurisdictionValue,
		AllowManualOverride: req.AllowManualOverride,
		IsDefault:           req.IsDefault,
		IsActive:            true,
		Currency:            req.Currency,
		ExpiresAt:           req.ExpiresAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if list.IsDefault {
			existing, err := s.repo.FindActiveDefault(ctx, tx, req.TenantID)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.ErrDefaultPriceListExists
			}
		}
		return s.repo.InsertList(ctx, tx, &list)
	})
	if err != nil {
		// A concurrent default slipped past the check; the partial unique
		// index rejects the second insert.
		if list.IsDefault && dbpkg.IsDuplicateKeyErr(err) {
			return domain.PriceList{}, domain.ErrDefaultPriceListExists
		}
		return domain.PriceList{}, err
	}
	return list, nil
}

func (s *Service) AddItem(ctx context.Context, req domain.AddItemRequest) (domain.PriceListItem, error) {
	if req.TenantID == 0 {
		return domain.PriceListItem{}, domain.ErrInvalidTenant
	}
	if req.MinQuantity == 0 {
		req.MinQuantity = 1
	}
	if err := validation.Struct(req); err != nil {
		return domain.PriceListItem{}, err
	}
	if req.Price.IsNegative() {
		return domain.PriceListItem{}, domain.ErrInvalidPrice
	}
	if req.MaxQuantity != nil && *req.MaxQuantity < req.MinQuantity {
		return domain.PriceListItem{}, domain.ErrInvalidQuantityRange
	}

	now := s.clock.Now()
	item := domain.PriceListItem{
		ID:          s.genID.Generate(),
		TenantID:    req.TenantID,
		PriceListID: req.PriceListID,
		SKUID:       req.SKUID,
		SKUCode:     strings.TrimSpace(req.SKUCode),
		Price:       req.Price.Round(2),
		MinQuantity: req.MinQuantity,
		MaxQuantity: req.MaxQuantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The list row lock serializes tier inserts so the overlap check
		// sees every committed tier.
		list, err := s.repo.LockList(ctx, tx, req.TenantID, req.PriceListID)
		if err != nil {
			return err
		}
		if list == nil {
			return domain.ErrNotFound
		}
		if !list.IsActive {
			return domain.ErrPriceListDisabled
		}
		existing, err := s.repo.ListItemsBySKU(ctx, tx, req.TenantID, req.PriceListID, []snowflake.ID{req.SKUID})
		if err != nil {
			return err
		}
		for _, other := range existing {
			if item.Overlaps(other) {
				return domain.ErrOverlappingTier
			}
		}
		return s.repo.InsertItem(ctx, tx, &item)
	})
	if err != nil {
		return domain.PriceListItem{}, err
	}
	return item, nil
}

func (s *Service) DisablePriceList(ctx context.Context, tenantID, id snowflake.ID) error {
	if tenantID == 0 {
		return domain.ErrInvalidTenant
	}
	rows, err := s.repo.SetActive(ctx, s.db, tenantID, id, false, s.clock.Now())
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	if err := s.auditSvc.AuditLog(ctx, tenantID, "", auditdomain.ActionPriceListDisabled, "price_list", id.String(), nil); err != nil {
		logger.WithContext(ctx, s.log).Warn("audit price list disable failed", zap.Error(err))
	}
	return nil
}

func (s *Service) GetPriceList(ctx context.Context, tenantID, id snowflake.ID) (domain.PriceList, error) {
	if tenantID == 0 {
		return domain.PriceList{}, domain.ErrInvalidTenant
	}
	list, err := s.repo.FindListByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.PriceList{}, err
	}
	if list == nil {
		return domain.PriceList{}, domain.ErrNotFound
	}
	items, err := s.repo.ListItems(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.PriceList{}, err
	}
	list.Items = items
	return *list, nil
}

func (s *Service) ListPriceLists(ctx context.Context, req domain.ListPriceListsRequest) ([]domain.PriceList, error) {
	if req.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	return s.repo.ListLists(ctx, s.db, req.TenantID, req.ActiveOnly)
}

// BulkAdjustPrices shifts the selected tiers by PercentChange. Every new price
// is computed before anything is written; one negative result refuses the
// whole batch.
func (s *Service) BulkAdjustPrices(ctx context.Context, req domain.BulkAdjustRequest) (domain.BulkAdjustResult, error) {
	log := logger.WithContext(ctx, s.log)
	if req.TenantID == 0 {
		return domain.BulkAdjustResult{}, domain.ErrInvalidTenant
	}
	if len(req.SKUIDs) == 0 {
		return domain.BulkAdjustResult{}, domain.ErrEmptySelection
	}
	if err := validation.Struct(req); err != nil {
		return domain.BulkAdjustResult{}, err
	}
	if err := s.authzSvc.Authorize(ctx, req.Actor, req.TenantID, authorization.ObjectPriceList, authorization.ActionBulkAdjust); err != nil {
		return domain.BulkAdjustResult{}, err
	}

	rounding := s.policy.Get().Rounding
	multiplier := decimal.NewFromInt(1).Add(req.PercentChange.Div(hundred))
	now := s.clock.Now()

	var result domain.BulkAdjustResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		list, err := s.repo.LockList(ctx, tx, req.TenantID, req.PriceListID)
		if err != nil {
			return err
		}
		if list == nil {
			return domain.ErrNotFound
		}
		if !list.IsActive {
			return domain.ErrPriceListDisabled
		}

		items, err := s.repo.ListItemsBySKU(ctx, tx, req.TenantID, req.PriceListID, req.SKUIDs)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domain.ErrItemNotFound
		}

		planned := make([]domain.AdjustedItem, 0, len(items))
		var rejected []domain.AdjustedItem
		for _, item := range items {
			adjusted := domain.AdjustedItem{
				PriceListItemID: item.ID,
				SKUID:           item.SKUID,
				OldPrice:        item.Price,
				NewPrice:        rounding.Round(item.Price.Mul(multiplier), 2),
			}
			if adjusted.NewPrice.IsNegative() {
				rejected = append(rejected, adjusted)
				continue
			}
			planned = append(planned, adjusted)
		}
		if len(rejected) > 0 {
			result.Rejected = rejected
			return domain.ErrNegativePrice
		}

		for _, adjusted := range planned {
			if _, err := s.repo.UpdateItemPrice(ctx, tx, req.TenantID, adjusted.PriceListItemID, adjusted.NewPrice, now); err != nil {
				return err
			}
		}
		result.Updated = planned
		return nil
	})
	if err != nil {
		s.metrics.RecordBulkAdjustment(ctx, outcomeOf(err))
		if errors.Is(err, domain.ErrNegativePrice) {
			log.Info("bulk adjustment refused",
				zap.String("price_list_id", req.PriceListID.String()),
				zap.Int("rejected", len(result.Rejected)),
			)
			return domain.BulkAdjustResult{Rejected: result.Rejected}, err
		}
		return domain.BulkAdjustResult{}, err
	}

	s.metrics.RecordBulkAdjustment(ctx, "applied")
	log.Info("bulk adjustment applied",
		zap.String("price_list_id", req.PriceListID.String()),
		zap.String("percent_change", req.PercentChange.String()),
		zap.Int("updated", len(result.Updated)),
	)

	if err := s.auditSvc.AuditLog(ctx, req.TenantID, req.Actor.ID, auditdomain.ActionPriceListBulkAdjusted, "price_list", req.PriceListID.String(), map[string]any{
		"percent_change": req.PercentChange.String(),
		"updated":        len(result.Updated),
	}); err != nil {
		log.Warn("audit bulk adjustment failed", zap.Error(err))
	}
	return result, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrNegativePrice):
		return "rejected"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrItemNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPriceListDisabled):
		return "disabled"
	default:
		return "error"
	}
}
