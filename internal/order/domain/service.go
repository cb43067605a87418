package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vintner/internal/authorization"
	"github.com/smallbiznis/vintner/pkg/apperr"
)

type CreateOrderRequest struct {
	TenantID     snowflake.ID `validate:"required"`
	CustomerID   snowflake.ID `validate:"required"`
	DeliveryDate time.Time    `validate:"required"`
}

type OverrideInput struct {
	Price  decimal.Decimal
	Reason string
}

type AddLineRequest struct {
	TenantID       snowflake.ID `validate:"required"`
	OrderID        snowflake.ID `validate:"required"`
	SKUID          snowflake.ID `validate:"required"`
	SKUCode        string
	Quantity       int  `validate:"gte=1"`
	BottlesPerCase *int `validate:"omitempty,gte=1"`
	// ManualPrice prices the line when no tier applies.
	ManualPrice *decimal.Decimal
	Override    *OverrideInput
	Actor       authorization.Actor
}

type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	AddLine(ctx context.Context, req AddLineRequest) (OrderLine, error)
	GetOrder(ctx context.Context, tenantID, id snowflake.ID) (Order, error)
}

var (
	ErrInvalidTenant       = apperr.Validation("invalid_tenant")
	ErrInvalidQuantity     = apperr.Validation("invalid_quantity")
	ErrInvalidManualPrice  = apperr.Validation("invalid_manual_price")
	ErrManualPriceConflict = apperr.Validation("manual_price_with_resolved_price")
	ErrOrderNotDraft       = apperr.Validation("order_not_draft")
	ErrNotFound            = apperr.NotFound("order_not_found")
	ErrLineNotFound        = apperr.NotFound("order_line_not_found")
)
