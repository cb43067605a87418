package observability

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/vintner/internal/config"
)

const (
	defaultServiceName    = "vintner"
	defaultSamplingRatio  = 0.1
	defaultExportInterval = 10 * time.Second
)

// Config is the observability section of the engine configuration. Service
// identity comes from config.Config; the rest is read from the environment.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	Log     LogSettings
	Tracing TracingSettings
	Metrics MetricsSettings
}

type LogSettings struct {
	Level  string
	Format string
}

type TracingSettings struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// MetricsSettings covers both the OTLP pricing instruments and the Prometheus
// collectors around invoice-number allocation.
type MetricsSettings struct {
	Enabled          bool
	Namespace        string
	ExportInterval   time.Duration
	SequencerEnabled bool
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	endpoint := strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint))
	protocol := strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")))
	if tracesProtocol := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); tracesProtocol != "" {
		protocol = strings.ToLower(tracesProtocol)
	}
	otelEnabled := getenvBool("OTEL_ENABLED", false)

	samplingRatio := getenvFloat("OTEL_SAMPLING_RATIO", defaultSamplingRatio)
	if samplingRatio < 0 || samplingRatio > 1 {
		samplingRatio = defaultSamplingRatio
	}
	interval := getenvDuration("METRICS_EXPORT_INTERVAL", defaultExportInterval)
	if interval <= 0 {
		interval = defaultExportInterval
	}

	return Config{
		ServiceName: serviceName,
		Environment: strings.TrimSpace(getenv("DEPLOYMENT_ENV", cfg.Environment)),
		Version:     strings.TrimSpace(getenv("SERVICE_VERSION", cfg.AppVersion)),
		Log: LogSettings{
			Level:  strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			Format: strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
		},
		Tracing: TracingSettings{
			Enabled:          otelEnabled,
			ExporterEndpoint: endpoint,
			ExporterProtocol: protocol,
			SamplingRatio:    samplingRatio,
		},
		Metrics: MetricsSettings{
			Enabled:          getenvBool("METRICS_ENABLED", otelEnabled),
			Namespace:        MetricNamespace(getenv("METRICS_NAMESPACE", serviceName)),
			ExportInterval:   interval,
			SequencerEnabled: getenvBool("SEQUENCER_METRICS_ENABLED", true),
		},
	}
}

// MetricNamespace folds a service name into a Prometheus-safe prefix:
// lowercase letters, digits and underscores, never starting with a digit.
func MetricNamespace(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-', r == '.', r == ' ':
			b.WriteByte('_')
		}
	}
	ns := strings.Trim(b.String(), "_")
	if ns == "" {
		return defaultServiceName
	}
	if ns[0] >= '0' && ns[0] <= '9' {
		ns = "_" + ns
	}
	return ns
}

func (c Config) Debug() bool {
	if c.Log.Level == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	parsed, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return parsed
}
