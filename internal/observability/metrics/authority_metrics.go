package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Authority call outcomes.
const (
	AuthorityOutcomeSuccess        = "success"
	AuthorityOutcomeTransport      = "transport"
	AuthorityOutcomeAuthentication = "authentication"
	AuthorityOutcomeSerialization  = "serialization"
	AuthorityOutcomeRejected       = "rejected"
	AuthorityOutcomeCancelled      = "cancelled"
)

// AuthorityMetrics tracks calls to the tax authority gateway. It is exported
// through the Prometheus registry served on /metrics.
type AuthorityMetrics struct {
	calls    *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	authorityMetricsOnce sync.Once
	authorityMetrics     *AuthorityMetrics
)

// Authority returns the singleton authority metrics registry.
func Authority() *AuthorityMetrics {
	return AuthorityWithConfig(Config{})
}

// AuthorityWithConfig returns the singleton authority metrics registry using config labels.
func AuthorityWithConfig(cfg Config) *AuthorityMetrics {
	authorityMetricsOnce.Do(func() {
		authorityMetrics = newAuthorityMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return authorityMetrics
}

// ResetAuthorityMetricsForTest resets the authority metrics singleton for tests.
func ResetAuthorityMetricsForTest() {
	authorityMetricsOnce = sync.Once{}
	authorityMetrics = nil
}

func newAuthorityMetrics(registerer prometheus.Registerer, cfg Config) *AuthorityMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "egsbridge"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "egs_authority_calls_total",
		Help:        "Authority gateway calls by operation and outcome.",
		ConstLabels: constLabels,
	}, []string{"operation", "outcome"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "egs_authority_retries_total",
		Help:        "Authority gateway retries after transport failures.",
		ConstLabels: constLabels,
	}, []string{"operation"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "egs_authority_call_duration_seconds",
		Help:        "Authority gateway call latency per attempt.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		ConstLabels: constLabels,
	}, []string{"operation"})

	calls = registerCollector(registerer, calls)
	retries = registerCollector(registerer, retries)
	duration = registerCollector(registerer, duration)

	return &AuthorityMetrics{
		calls:    calls,
		retries:  retries,
		duration: duration,
	}
}

func registerCollector[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if err := registerer.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return collector
}

// IncCall counts one finished call, after any retries.
func (m *AuthorityMetrics) IncCall(operation, outcome string) {
	if m == nil || m.calls == nil {
		return
	}
	m.calls.WithLabelValues(operation, outcome).Inc()
}

// IncRetry counts one retry scheduled after a transport failure.
func (m *AuthorityMetrics) IncRetry(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

// ObserveAttempt records the latency of a single attempt.
func (m *AuthorityMetrics) ObserveAttempt(operation string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}
