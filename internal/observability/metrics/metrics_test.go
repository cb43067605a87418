package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("outcome", "resolved"),
		attribute.String("tenant_id", "123"),
		attribute.String("customer_id", "456"),
		attribute.String("state_code", "MD"),
	)
	assert.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("outcome"))
	assert.Contains(t, keys, attribute.Key("state_code"))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPriceResolution(context.Background(), "resolved", "STATE")
		m.RecordInvoiceNumber(context.Background(), "MD")
	})

	assert.NotPanics(t, func() {
		NewNoop().RecordBulkAdjustment(context.Background(), "applied")
	})
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, "vintner_bulk_adjustments_total", cfg.name("bulk_adjustments_total"))
	assert.Equal(t, defaultExportInterval, cfg.exportInterval())

	cfg = Config{Namespace: " harbor ", ExportInterval: time.Minute}
	assert.Equal(t, "harbor_bulk_adjustments_total", cfg.name("bulk_adjustments_total"))
	assert.Equal(t, time.Minute, cfg.exportInterval())
}
