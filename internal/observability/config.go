package observability

import (
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/smallbiznis/egsbridge/internal/config"
)

// Config holds observability configuration derived from environment variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	MetricsEnabled       bool
	TracingEnabled       bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

var devEnvironments = []string{"dev", "development", "local", "test"}

// LoadConfig overlays the OTEL_* and LOG_* environment on the application
// config. OTEL_ENABLED=false turns off both metrics and tracing.
func LoadConfig(cfg config.Config) Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DEPLOYMENT_ENV", cfg.Environment)
	v.SetDefault("SERVICE_VERSION", cfg.AppVersion)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_ENABLED", true)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTEL_SAMPLING_RATIO", 0.1)

	protocol := lower(v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL"))
	if traces := lower(v.GetString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}
	otelEnabled := v.GetBool("OTEL_ENABLED")

	return Config{
		ServiceName:          lo.Ternary(strings.TrimSpace(cfg.AppName) != "", strings.TrimSpace(cfg.AppName), "egsbridge"),
		Environment:          strings.TrimSpace(v.GetString("DEPLOYMENT_ENV")),
		Version:              strings.TrimSpace(v.GetString("SERVICE_VERSION")),
		LogLevel:             lower(v.GetString("LOG_LEVEL")),
		LogFormat:            lower(v.GetString("LOG_FORMAT")),
		MetricsEnabled:       otelEnabled && cfg.MetricsEnabled,
		TracingEnabled:       otelEnabled && cfg.TracingEnabled,
		OtelExporterEndpoint: strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    clampRatio(v.GetFloat64("OTEL_SAMPLING_RATIO")),
	}
}

// Debug reports whether verbose logging and gin debug mode apply.
func (c Config) Debug() bool {
	return c.LogLevel == "debug" || lo.Contains(devEnvironments, lower(c.Environment))
}

func clampRatio(ratio float64) float64 {
	return lo.Clamp(ratio, 0, 1)
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
