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

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	invoicesAssembled  metric.Int64Counter
	complianceChecks   metric.Int64Counter
	credentialIssuance metric.Int64Counter
	onboardingRuns     metric.Int64Counter
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "egsbridge"
	}
	meter := provider.Meter(name)

	invoicesAssembled, err := meter.Int64Counter("egs_invoices_assembled_total")
	if err != nil {
		return nil, err
	}
	complianceChecks, err := meter.Int64Counter("egs_compliance_checks_total")
	if err != nil {
		return nil, err
	}
	credentialIssuance, err := meter.Int64Counter("egs_credential_issuance_total")
	if err != nil {
		return nil, err
	}
	onboardingRuns, err := meter.Int64Counter("egs_onboarding_runs_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invoicesAssembled:  invoicesAssembled,
		complianceChecks:   complianceChecks,
		credentialIssuance: credentialIssuance,
		onboardingRuns:     onboardingRuns,
	}, nil
}

// RecordInvoiceAssembled increments assembled document counts.
func (m *Metrics) RecordInvoiceAssembled(ctx context.Context, documentType, subType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("type", strings.TrimSpace(documentType)),
		attribute.String("subtype", strings.TrimSpace(subType)),
	)
	m.invoicesAssembled.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordComplianceCheck increments compliance sample submissions.
func (m *Metrics) RecordComplianceCheck(ctx context.Context, flow, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("flow", strings.TrimSpace(flow)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.complianceChecks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCredentialIssuance increments CCSID and PCSID requests.
func (m *Metrics) RecordCredentialIssuance(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.credentialIssuance.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOnboardingRun increments finished onboarding runs by resulting tier.
func (m *Metrics) RecordOnboardingRun(ctx context.Context, environment, tier string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("env", strings.TrimSpace(environment)),
		attribute.String("tier", strings.TrimSpace(tier)),
	)
	m.onboardingRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"env":     {},
	"type":    {},
	"subtype": {},
	"flow":    {},
	"kind":    {},
	"outcome": {},
	"tier":    {},
	"reason":  {},
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
