package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/internal/authorization"
	customerdomain "github.com/smallbiznis/vintner/internal/customer/domain"
	"github.com/smallbiznis/vintner/pkg/apperr"
	"github.com/smallbiznis/vintner/pkg/db/pagination"
)

type IssueInvoiceRequest struct {
	TenantID snowflake.ID `validate:"required"`
	OrderID  snowflake.ID `validate:"required"`
	Actor    authorization.Actor
}

type ListInvoiceRequest struct {
	pagination.Pagination
	TenantID   snowflake.ID
	CustomerID snowflake.ID
	Prefix     string
	From       *time.Time
	To         *time.Time
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	// NextInvoiceNumber allocates and commits the next number for the
	// customer's jurisdiction and the delivery year.
	NextInvoiceNumber(ctx context.Context, tenantID snowflake.ID, customer customerdomain.Customer, deliveryDate time.Time) (string, error)
	IssueInvoice(ctx context.Context, req IssueInvoiceRequest) (Invoice, error)
	GetInvoice(ctx context.Context, tenantID, id snowflake.ID) (Invoice, error)
	GetByNumber(ctx context.Context, tenantID snowflake.ID, number string) (Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	RenderInvoice(ctx context.Context, tenantID, id snowflake.ID) (string, error)
}

// SequenceLocker serializes allocation for one (tenant, prefix) across
// processes. Acquire returns ErrLockBusy when another holder has it.
type SequenceLocker interface {
	Acquire(ctx context.Context, tenantID snowflake.ID, prefix string) (release func(context.Context) error, err error)
}

var (
	ErrInvalidTenant        = apperr.Validation("invalid_tenant")
	ErrInvalidOrder         = apperr.Validation("invalid_order")
	ErrInvalidInvoiceNumber = apperr.Validation("invalid_invoice_number")
	ErrInvalidPrefix        = apperr.Validation("invalid_invoice_prefix")
	ErrInvalidPageToken     = apperr.Validation("invalid_page_token")
	ErrInvalidTimeRange     = apperr.Validation("invalid_time_range")
	ErrEmptyOrder           = apperr.Validation("order_has_no_lines")
	ErrCurrencyMismatch     = apperr.Validation("currency_mismatch")
	ErrCustomerMismatch     = apperr.Validation("customer_tenant_mismatch")
	ErrInvoiceAlreadyExists = apperr.Conflict("invoice_already_exists")
	ErrSequenceConflict     = apperr.Conflict("invoice_sequence_conflict")
	ErrSequenceExhausted    = apperr.Conflict("invoice_sequence_exhausted")
	ErrLockBusy             = apperr.Conflict("invoice_sequence_locked")
	ErrNotFound             = apperr.NotFound("invoice_not_found")
)
