package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/internal/clock"
	"github.com/smallbiznis/vintner/internal/customer/domain"
	"github.com/smallbiznis/vintner/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	if req.TenantID == 0 {
		return domain.Customer{}, domain.ErrInvalidTenant
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}
	req.State = strings.ToUpper(strings.TrimSpace(req.State))
	if req.InvoiceStateCode != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.InvoiceStateCode))
		req.InvoiceStateCode = &code
		if code == "" {
			req.InvoiceStateCode = nil
		}
	}
	if err := validation.Struct(req); err != nil {
		return domain.Customer{}, err
	}

	terms := req.PaymentTermsDays
	if terms == 0 {
		terms = 30
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:                s.genID.Generate(),
		TenantID:          req.TenantID,
		Name:              req.Name,
		AccountNumber:     strings.TrimSpace(req.AccountNumber),
		State:             req.State,
		Territory:         strings.TrimSpace(req.Territory),
		IsTaxExempt:       req.IsTaxExempt,
		InvoiceStateCode:  req.InvoiceStateCode,
		CustomPriceListID: req.CustomPriceListID,
		PaymentTermsDays:  terms,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, tenantID, id snowflake.ID) (domain.Customer, error) {
	if tenantID == 0 {
		return domain.Customer{}, domain.ErrInvalidTenant
	}
	item, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	return *item, nil
}

// AssignPriceList attaches (or with nil, detaches) a CUSTOM price list.
func (s *Service) AssignPriceList(ctx context.Context, tenantID, id snowflake.ID, priceListID *snowflake.ID) error {
	if tenantID == 0 {
		return domain.ErrInvalidTenant
	}
	rows, err := s.repo.UpdatePriceList(ctx, s.db, tenantID, id, priceListID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	s.log.Info("customer price list assigned",
		zap.String("customer_id", id.String()),
		zap.Bool("cleared", priceListID == nil),
	)
	return nil
}
