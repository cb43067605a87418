package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/vintner/internal/customer/domain"
	"github.com/smallbiznis/vintner/pkg/apperr"
)

type ResolveRequest struct {
	TenantID   snowflake.ID
	CustomerID snowflake.ID
	SKUID      snowflake.ID
	Quantity   int
	// At defaults to the current time.
	At *time.Time
}

type Service interface {
	ResolvePrice(ctx context.Context, req ResolveRequest) (PriceResolution, error)
	ResolveForCustomer(ctx context.Context, customer customerdomain.Customer, skuID snowflake.ID, quantity int) (PriceResolution, error)
}

var (
	ErrInvalidTenant   = apperr.Validation("invalid_tenant")
	ErrInvalidQuantity = apperr.Validation("invalid_quantity")
	ErrPriceNotFound   = apperr.NotFound("price_not_found")
)
