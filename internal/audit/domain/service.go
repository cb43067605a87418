package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/pkg/apperr"
	"github.com/smallbiznis/vintner/pkg/db/pagination"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	TenantID   snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Service is the audit sink. An empty actorID records a system action.
type Service interface {
	AuditLog(ctx context.Context, tenantID snowflake.ID, actorID string, action string, targetType string, targetID string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidTenant    = apperr.Validation("invalid_tenant")
	ErrInvalidPageToken = apperr.Validation("invalid_page_token")
	ErrInvalidTimeRange = apperr.Validation("invalid_time_range")
	ErrInvalidAction    = apperr.Validation("invalid_action")
)
