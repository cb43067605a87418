package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultNamespace      = "vintner"
	defaultExportInterval = 10 * time.Second
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ExportInterval   time.Duration
	// Namespace prefixes every instrument and collector name.
	Namespace   string
	ServiceName string
	Environment string
}

func (c Config) namespace() string {
	if ns := strings.TrimSpace(c.Namespace); ns != "" {
		return ns
	}
	return defaultNamespace
}

func (c Config) exportInterval() time.Duration {
	if c.ExportInterval > 0 {
		return c.ExportInterval
	}
	return defaultExportInterval
}

func (c Config) name(suffix string) string {
	return c.namespace() + "_" + suffix
}

// Metrics exposes pricing and invoicing instruments.
type Metrics struct {
	priceResolutions metric.Int64Counter
	priceOverrides   metric.Int64Counter
	bulkAdjustments  metric.Int64Counter
	invoiceNumbers   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.exportInterval()))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
		zap.String("namespace", cfg.namespace()),
		zap.Duration("interval", cfg.exportInterval()),
	)
	return provider, nil
}

// New configures the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meterName := strings.TrimSpace(cfg.ServiceName)
	if meterName == "" {
		meterName = cfg.namespace()
	}
	meter := provider.Meter(meterName)

	priceResolutions, err := meter.Int64Counter(cfg.name("price_resolutions_total"))
	if err != nil {
		return nil, err
	}
	priceOverrides, err := meter.Int64Counter(cfg.name("price_overrides_total"))
	if err != nil {
		return nil, err
	}
	bulkAdjustments, err := meter.Int64Counter(cfg.name("bulk_adjustments_total"))
	if err != nil {
		return nil, err
	}
	invoiceNumbers, err := meter.Int64Counter(cfg.name("invoice_numbers_issued_total"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		priceResolutions: priceResolutions,
		priceOverrides:   priceOverrides,
		bulkAdjustments:  bulkAdjustments,
		invoiceNumbers:   invoiceNumbers,
	}, nil
}

// NewNoop returns instruments bound to a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordPriceResolution counts resolver calls by outcome and winning jurisdiction.
func (m *Metrics) RecordPriceResolution(ctx context.Context, outcome, jurisdictionType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
		attribute.String("jurisdiction_type", strings.TrimSpace(jurisdictionType)),
	)
	m.priceResolutions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPriceOverride(ctx context.Context, requiresApproval bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.Bool("requires_approval", requiresApproval))
	m.priceOverrides.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordBulkAdjustment(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.bulkAdjustments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordInvoiceNumber(ctx context.Context, stateCode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("state_code", strings.TrimSpace(stateCode)))
	m.invoiceNumbers.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Tenant and customer ids are deliberately absent.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":           {},
	"jurisdiction_type": {},
	"requires_approval": {},
	"state_code":        {},
	"reason":            {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
