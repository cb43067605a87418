package logger

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/internal/tenantcontext"
	"github.com/smallbiznis/vintner/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsRequestFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := tenantcontext.WithTenantID(context.Background(), snowflake.ID(9))
	ctx = tenantcontext.WithActorID(ctx, "user:1")
	ctx = correlation.ContextWithCorrelationID(ctx, "cid-1")

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "9", fields["tenant_id"])
		assert.Equal(t, "user:1", fields["actor_id"])
		assert.Equal(t, "cid-1", fields["correlation_id"])
		_, hasTrace := fields["trace_id"]
		assert.False(t, hasTrace)
	}
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("  select * from invoices"))
	assert.Equal(t, "UPDATE", operationFromSQL("UPDATE invoice_sequences SET last_value = last_value + 1"))
	assert.Equal(t, "INSERT", operationFromSQL("(INSERT INTO price_overrides VALUES (1))"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
