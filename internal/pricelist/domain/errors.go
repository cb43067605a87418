package domain

import "github.com/smallbiznis/vintner/pkg/apperr"

var (
	ErrInvalidTenant          = apperr.Validation("invalid_tenant")
	ErrInvalidName            = apperr.Validation("invalid_name")
	ErrInvalidJurisdiction    = apperr.Validation("invalid_jurisdiction")
	ErrInvalidPrice           = apperr.Validation("invalid_price")
	ErrInvalidQuantityRange   = apperr.Validation("invalid_quantity_range")
	ErrOverlappingTier        = apperr.Validation("overlapping_tier")
	ErrNegativePrice          = apperr.Validation("negative_price")
	ErrEmptySelection         = apperr.Validation("empty_selection")
	ErrPriceListDisabled      = apperr.Validation("price_list_disabled")
	ErrDefaultPriceListExists = apperr.Conflict("default_price_list_exists")
	ErrNotFound               = apperr.NotFound("price_list_not_found")
	ErrItemNotFound           = apperr.NotFound("price_list_item_not_found")
)
