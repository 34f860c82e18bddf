package instrumentation

import (
	"fmt"
	"os"
	"strconv"
)

// Exporter names accepted for metrics and tracing.
const (
	ExporterNone       = "none"
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
)

// Config controls the telemetry setup.
type Config struct {
	// Enabled turns instrumentation on. When false the provider is a
	// no-op.
	Enabled bool

	// ServiceName and ServiceVersion identify the service in exported
	// telemetry.
	ServiceName    string
	ServiceVersion string

	// MetricsExporter is "prometheus" or "otlp".
	MetricsExporter string

	// TracingExporter is "none", "otlp" or "stdout".
	TracingExporter string

	// OTLPEndpoint is the host:port of the OTLP collector, required
	// when either exporter is "otlp".
	OTLPEndpoint string

	// OTLPInsecure disables TLS towards the collector. Development only.
	OTLPInsecure bool

	// TraceSamplingRate is the head sampling ratio in [0, 1].
	TraceSamplingRate float64
}

// DefaultConfig returns a configuration from the environment with
// sensible defaults: Prometheus metrics, no tracing.
func DefaultConfig() Config {
	return Config{
		Enabled:           getEnvBoolOrDefault("SLOTWISE_TELEMETRY_ENABLED", false),
		ServiceName:       getEnvOrDefault("OTEL_SERVICE_NAME", "slotwise"),
		ServiceVersion:    "dev",
		MetricsExporter:   getEnvOrDefault("SLOTWISE_METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   getEnvOrDefault("SLOTWISE_TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:      getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: getEnvFloatOrDefault("SLOTWISE_TRACE_SAMPLING_RATE", 0.1),
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	switch c.MetricsExporter {
	case ExporterPrometheus:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required for OTLP metrics exporter; set OTEL_EXPORTER_OTLP_ENDPOINT or use %q", ExporterPrometheus)
		}
	default:
		return fmt.Errorf("unsupported metrics exporter: %s", c.MetricsExporter)
	}
	switch c.TracingExporter {
	case ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required for OTLP tracing exporter")
		}
	default:
		return fmt.Errorf("unsupported tracing exporter: %s", c.TracingExporter)
	}
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be within [0, 1], got %v", c.TraceSamplingRate)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
