package observability

import (
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/janhq/evaluator-server/internal/config"
)

// Config holds OpenTelemetry settings for the evaluator process.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TracingEnabled bool
	MetricsEnabled bool
	OTLPEndpoint   string
	OTLPHeaders    map[string]string
	SamplingRate   float64 // 0.0 - 1.0
	PIILevel       string  // none|hashed|full

	TraceBatchTimeout time.Duration
	MetricInterval    time.Duration
	ResourceAttrs     []attribute.KeyValue
}

// DefaultConfig returns a config with export disabled.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:       serviceName,
		ServiceVersion:    "unknown",
		Environment:       "development",
		SamplingRate:      1.0,
		PIILevel:          "hashed",
		TraceBatchTimeout: 5 * time.Second,
		MetricInterval:    15 * time.Second,
	}
}

// FromAppConfig maps the service configuration onto OTEL settings. Export is only enabled
// when OTEL_ENABLED is set and an endpoint is configured.
func FromAppConfig(cfg *config.Config, version string) Config {
	out := DefaultConfig(cfg.ServiceName)
	if version != "" {
		out.ServiceVersion = version
	}
	out.Environment = cfg.Environment
	out.PIILevel = cfg.PIILevel
	out.OTLPEndpoint = cfg.OTLPEndpoint
	enabled := cfg.EnableTracing && cfg.OTLPEndpoint != ""
	out.TracingEnabled = enabled
	out.MetricsEnabled = enabled
	if cfg.IsProduction() {
		out.SamplingRate = 0.2
	}
	return out
}
