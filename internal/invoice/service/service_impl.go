package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/vintner/internal/audit/domain"
	"github.com/smallbiznis/vintner/internal/authorization"
	"github.com/smallbiznis/vintner/internal/clock"
	"github.com/smallbiznis/vintner/internal/config"
	customerdomain "github.com/smallbiznis/vintner/internal/customer/domain"
	"github.com/smallbiznis/vintner/internal/invoice/domain"
	"github.com/smallbiznis/vintner/internal/invoice/format"
	"github.com/smallbiznis/vintner/internal/invoice/render"
	"github.com/smallbiznis/vintner/internal/observability/logger"
	"github.com/smallbiznis/vintner/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/vintner/internal/order/domain"
	pricelistdomain "github.com/smallbiznis/vintner/internal/pricelist/domain"
	"github.com/smallbiznis/vintner/internal/quantity"
	"github.com/smallbiznis/vintner/pkg/db/pagination"
	"github.com/smallbiznis/vintner/pkg/repository"
	"github.com/smallbiznis/vintner/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultCurrency         = "USD"
	defaultPaymentTermsDays = 30
)

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
	CustomerSvc   customerdomain.Service
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	Renderer      render.Renderer
	Locker        domain.SequenceLocker     `optional:"true"`
	Metrics       *metrics.Metrics          `optional:"true"`
	SeqMetrics    *metrics.SequencerMetrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	policy        *config.PolicyHolder
	repo          domain.Repository
	invoicerepo   repository.Repository[domain.Invoice]
	orderRepo     orderdomain.Repository
	priceListRepo pricelistdomain.Repository
	customerSvc   customerdomain.Service
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	renderer      render.Renderer
	locker        domain.SequenceLocker
	metrics       *metrics.Metrics
	seqMetrics    *metrics.SequencerMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: p.Clock,

		policy:        p.Policy,
		repo:          p.Repo,
		invoicerepo:   repository.ProvideStore[domain.Invoice](p.DB),
		orderRepo:     p.OrderRepo,
		priceListRepo: p.PriceListRepo,
		customerSvc:   p.CustomerSvc,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		renderer:      p.Renderer,
		locker:        p.Locker,
		metrics:       p.Metrics,
		seqMetrics:    p.SeqMetrics,
	}
}

// IssueInvoice bills a draft order exactly once. The number allocation, the
// invoice rows and the order status change commit together.
func (s *Service) IssueInvoice(ctx context.Context, req domain.IssueInvoiceRequest) (domain.Invoice, error) {
	if err := validation.Struct(req); err != nil {
		return domain.Invoice{}, err
	}
	if err := s.authzSvc.Authorize(ctx, req.Actor, req.TenantID, authorization.ObjectInvoice, authorization.ActionIssueInvoice); err != nil {
		return domain.Invoice{}, err
	}

	order, err := s.orderRepo.FindOrderByID(ctx, s.db, req.TenantID, req.OrderID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if order == nil {
		return domain.Invoice{}, orderdomain.ErrNotFound
	}
	existing, err := s.repo.FindByOrderID(ctx, s.db, req.TenantID, order.ID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if existing != nil || order.Status != orderdomain.StatusDraft {
		return domain.Invoice{}, domain.ErrInvoiceAlreadyExists
	}

	lines, err := s.orderRepo.ListLines(ctx, s.db, req.TenantID, order.ID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if len(lines) == 0 {
		return domain.Invoice{}, domain.ErrEmptyOrder
	}
	if _, err := s.currencyFor(ctx, s.db, req.TenantID, lines); err != nil {
		return domain.Invoice{}, err
	}

	customer, err := s.customerSvc.GetByID(ctx, req.TenantID, order.CustomerID)
	if err != nil {
		return domain.Invoice{}, err
	}

	code := s.jurisdictionCode(req.TenantID, customer)
	prefix := format.Prefix(code, order.DeliveryDate)
	issuedAt := s.clock.Now()
	terms := customer.PaymentTermsDays
	if terms <= 0 {
		terms = defaultPaymentTermsDays
	}

	invoice := domain.Invoice{
		TenantID:     req.TenantID,
		CustomerID:   customer.ID,
		OrderID:      order.ID,
		StateCode:    code,
		Prefix:       prefix,
		Status:       domain.InvoiceStatusIssued,
		DeliveryDate: order.DeliveryDate,
		IssuedAt:     issuedAt,
		DueDate:      issuedAt.AddDate(0, 0, terms),
		Metadata:     datatypes.JSONMap{"payment_terms_days": terms},
		CreatedAt:    issuedAt,
		UpdatedAt:    issuedAt,
	}
	formatter := quantity.NewFormatter(s.policy.Get().DefaultBottlesPerCase)

	_, err = s.allocateWith(ctx, req.TenantID, prefix, func(tx *gorm.DB, seq int64) error {
		current, err := s.repo.FindByOrderID(ctx, tx, req.TenantID, order.ID)
		if err != nil {
			return err
		}
		if current != nil {
			return domain.ErrInvoiceAlreadyExists
		}
		// Lines are read again under the order lock so a concurrent override
		// or new line lands either before the invoice or not at all.
		locked, err := s.orderRepo.LockOrder(ctx, tx, req.TenantID, order.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return orderdomain.ErrNotFound
		}
		if locked.Status != orderdomain.StatusDraft {
			return domain.ErrInvoiceAlreadyExists
		}
		lines, err := s.orderRepo.ListLines(ctx, tx, req.TenantID, order.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyOrder
		}
		invoice.Currency, err = s.currencyFor(ctx, tx, req.TenantID, lines)
		if err != nil {
			return err
		}

		invoice.ID = s.genID.Generate()
		invoice.Sequence = seq
		invoice.InvoiceNumber = format.FormatInvoiceNumber(code, order.DeliveryDate.Year(), int(seq))
		invoice.Items = buildItems(s.genID, formatter, invoice, lines)
		invoice.Subtotal = decimal.Zero
		for _, item := range invoice.Items {
			invoice.Subtotal = invoice.Subtotal.Add(item.Amount)
		}
		invoice.Total = invoice.Subtotal

		if err := s.repo.InsertInvoice(ctx, tx, &invoice); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, invoice.Items); err != nil {
			return err
		}
		affected, err := s.orderRepo.UpdateStatus(ctx, tx, req.TenantID, order.ID, orderdomain.StatusInvoiced, issuedAt)
		if err != nil {
			return err
		}
		if affected == 0 {
			return orderdomain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.metrics.RecordInvoiceNumber(ctx, code)
	log := logger.WithContext(ctx, s.log)
	log.Info("invoice issued",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("order_id", order.ID.String()),
		zap.String("total", invoice.Total.StringFixed(2)),
	)

	if err := s.auditSvc.AuditLog(ctx, req.TenantID, strings.TrimSpace(req.Actor.ID), auditdomain.ActionInvoiceIssued, "invoice", invoice.ID.String(), map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"order_id":       order.ID.String(),
		"customer_id":    customer.ID.String(),
		"total":          invoice.Total.StringFixed(2),
		"currency":       invoice.Currency,
	}); err != nil {
		log.Warn("audit invoice issued failed", zap.Error(err))
	}
	return invoice, nil
}

func buildItems(genID *snowflake.Node, formatter quantity.Formatter, invoice domain.Invoice, lines []orderdomain.OrderLine) []domain.InvoiceItem {
	items := make([]domain.InvoiceItem, 0, len(lines))
	for _, line := range lines {
		display := formatter.Format(line.Quantity, line.BottlesPerCase)
		items = append(items, domain.InvoiceItem{
			ID:              genID.Generate(),
			TenantID:        invoice.TenantID,
			InvoiceID:       invoice.ID,
			OrderLineID:     line.ID,
			SKUID:           line.SKUID,
			SKUCode:         line.SKUCode,
			Quantity:        line.Quantity,
			BottlesPerCase:  line.BottlesPerCase,
			Cases:           display.Cases,
			QuantityLabel:   quantity.LineLabel(display),
			UnitPrice:       line.UnitPrice,
			Amount:          line.LineTotal(),
			PriceOverridden: line.PriceOverridden,
			CreatedAt:       invoice.IssuedAt,
		})
	}
	return items
}

// currencyFor takes the currency of the lists the lines were priced from.
// Manually priced lines carry no list and follow the others.
func (s *Service) currencyFor(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, lines []orderdomain.OrderLine) (string, error) {
	currency := ""
	seen := make(map[snowflake.ID]bool)
	for _, line := range lines {
		if line.PriceListID == nil || seen[*line.PriceListID] {
			continue
		}
		seen[*line.PriceListID] = true

		list, err := s.priceListRepo.FindListByID(ctx, db, tenantID, *line.PriceListID)
		if err != nil {
			return "", err
		}
		if list == nil {
			continue
		}
		listCurrency := strings.ToUpper(strings.TrimSpace(list.Currency))
		if listCurrency == "" {
			continue
		}
		if currency != "" && currency != listCurrency {
			return "", domain.ErrCurrencyMismatch
		}
		currency = listCurrency
	}
	if currency == "" {
		currency = defaultCurrency
	}
	return currency, nil
}

func (s *Service) GetInvoice(ctx context.Context, tenantID, id snowflake.ID) (domain.Invoice, error) {
	if tenantID == 0 {
		return domain.Invoice{}, domain.ErrInvalidTenant
	}
	invoice, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return s.withItems(ctx, *invoice)
}

func (s *Service) GetByNumber(ctx context.Context, tenantID snowflake.ID, number string) (domain.Invoice, error) {
	if tenantID == 0 {
		return domain.Invoice{}, domain.ErrInvalidTenant
	}
	number = strings.TrimSpace(number)
	if !format.IsValidInvoiceNumber(number) {
		return domain.Invoice{}, domain.ErrInvalidInvoiceNumber
	}
	invoice, err := s.repo.FindByNumber(ctx, s.db, tenantID, number)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return s.withItems(ctx, *invoice)
}

func (s *Service) withItems(ctx context.Context, invoice domain.Invoice) (domain.Invoice, error) {
	items, err := s.repo.ListItems(ctx, s.db, invoice.TenantID, invoice.ID)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice.Items = items
	return invoice, nil
}

var listSortColumns = map[string]bool{"created_at": true, "id": true}

func (s *Service) ListInvoices(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	if req.TenantID == 0 {
		return domain.ListInvoiceResponse{}, domain.ErrInvalidTenant
	}
	if req.From != nil && req.To != nil && req.From.After(*req.To) {
		return domain.ListInvoiceResponse{}, domain.ErrInvalidTimeRange
	}

	filter := &domain.Invoice{TenantID: req.TenantID, CustomerID: req.CustomerID}
	if prefix := strings.ToUpper(strings.TrimSpace(req.Prefix)); prefix != "" {
		if len(prefix) != format.PrefixLength {
			return domain.ListInvoiceResponse{}, domain.ErrInvalidPrefix
		}
		filter.Prefix = prefix
	}

	pageSize := req.Size()
	options := []repository.QueryOption{
		repository.CreatedBetween(req.From, req.To),
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListInvoiceResponse{}, domain.ErrInvalidPageToken
	}
	if cursor != nil {
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil || id == 0 {
			return domain.ListInvoiceResponse{}, domain.ErrInvalidPageToken
		}
		options = append(options, repository.After(cursor.CreatedAt, id.Int64()))
	}
	options = append(options,
		repository.OrderBy("created_at", true, listSortColumns),
		repository.OrderBy("id", true, listSortColumns),
		repository.Limit(pageSize+1),
	)

	items, err := s.invoicerepo.Find(ctx, filter, options...)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	invoices, pageInfo := pagination.Trim(invoices, pageSize, func(item domain.Invoice) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String(), CreatedAt: item.CreatedAt}
	})
	return domain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

// RenderInvoice renders a stored invoice as HTML with case/bottle labels.
func (s *Service) RenderInvoice(ctx context.Context, tenantID, id snowflake.ID) (string, error) {
	invoice, err := s.GetInvoice(ctx, tenantID, id)
	if err != nil {
		return "", err
	}
	customer, err := s.customerSvc.GetByID(ctx, tenantID, invoice.CustomerID)
	if err != nil {
		return "", err
	}
	return s.renderer.RenderHTML(render.RenderInput{Invoice: invoice, Customer: customer})
}
