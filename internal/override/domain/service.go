package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vintner/internal/authorization"
	orderdomain "github.com/smallbiznis/vintner/internal/order/domain"
	"github.com/smallbiznis/vintner/pkg/apperr"
	"github.com/smallbiznis/vintner/pkg/db/pagination"
)

type RecordOverrideRequest struct {
	TenantID    snowflake.ID
	OrderLineID snowflake.ID
	Price       decimal.Decimal
	Reason      string
	Actor       authorization.Actor
}

type ListRequest struct {
	pagination.Pagination
	TenantID snowflake.ID
	From     *time.Time
	To       *time.Time
	ActorID  string
}

type ListResponse struct {
	pagination.PageInfo
	Overrides []PriceOverride `json:"overrides"`
}

type Service interface {
	RecordOverride(ctx context.Context, req RecordOverrideRequest) (orderdomain.OrderLine, error)
	ListByOrderLine(ctx context.Context, tenantID, orderLineID snowflake.ID) ([]PriceOverride, error)
	ListByOrder(ctx context.Context, tenantID, orderID snowflake.ID) ([]PriceOverride, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidTenant      = apperr.Validation("invalid_tenant")
	ErrReasonRequired     = apperr.Validation("override_reason_required")
	ErrInvalidPrice       = apperr.Validation("invalid_override_price")
	ErrPriceUnchanged     = apperr.Validation("override_price_unchanged")
	ErrOverrideNotAllowed = apperr.Validation("override_not_allowed")
	ErrInvalidTimeRange   = apperr.Validation("invalid_time_range")
	ErrInvalidPageToken   = apperr.Validation("invalid_page_token")
)
