package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/pkg/apperr"
)

type CreateCustomerRequest struct {
	TenantID          snowflake.ID  `validate:"required"`
	Name              string        `validate:"required"`
	AccountNumber     string
	State             string `validate:"omitempty,alpha,max=8"`
	Territory         string
	IsTaxExempt       bool
	InvoiceStateCode  *string `validate:"omitempty,alpha,max=8"`
	CustomPriceListID *snowflake.ID
	PaymentTermsDays  int `validate:"gte=0,lte=365"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	GetByID(ctx context.Context, tenantID, id snowflake.ID) (Customer, error)
	AssignPriceList(ctx context.Context, tenantID, id snowflake.ID, priceListID *snowflake.ID) error
}

var (
	ErrInvalidTenant = apperr.Validation("invalid_tenant")
	ErrInvalidName   = apperr.Validation("invalid_name")
	ErrNotFound      = apperr.NotFound("customer_not_found")
)
