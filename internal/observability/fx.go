package observability

import (
	"github.com/smallbiznis/vintner/internal/observability/logger"
	"github.com/smallbiznis/vintner/internal/observability/metrics"
	"github.com/smallbiznis/vintner/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		provideSequencerMetrics,
	),
	fx.Invoke(ensureTracingProvider),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.Log.Level,
		Format:              cfg.Log.Format,
		Debug:               cfg.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Debug(),
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.Tracing.Enabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
		ExporterProtocol: cfg.Tracing.ExporterProtocol,
		SamplingRatio:    cfg.Tracing.SamplingRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.Metrics.Enabled,
		ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
		ExporterProtocol: cfg.Tracing.ExporterProtocol,
		ExportInterval:   cfg.Metrics.ExportInterval,
		Namespace:        cfg.Metrics.Namespace,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}

// provideSequencerMetrics returns nil when the collectors are switched off;
// the invoice service treats a nil collector as a no-op.
func provideSequencerMetrics(cfg Config, mcfg metrics.Config) *metrics.SequencerMetrics {
	if !cfg.Metrics.SequencerEnabled {
		return nil
	}
	return metrics.SequencerWithConfig(mcfg)
}
