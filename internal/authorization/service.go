package authorization

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/pkg/apperr"
)

// Actor is the caller on whose behalf an action runs. Role comes from the
// caller's session.
type Actor struct {
	ID   string
	Role string
}

type Service interface {
	Authorize(ctx context.Context, actor Actor, tenantID snowflake.ID, object string, action string) error
}

var (
	ErrInvalidActor  = apperr.Validation("invalid_actor")
	ErrInvalidTenant = apperr.Validation("invalid_tenant")
	ErrInvalidObject = apperr.Validation("invalid_object")
	ErrInvalidAction = apperr.Validation("invalid_action")
	ErrForbidden     = apperr.Forbidden("forbidden")
)
