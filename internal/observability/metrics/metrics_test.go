package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("flow", "clearance"),
		attribute.String("certificate", "TST-886431145-399999999900003"),
		attribute.String("outcome", "accepted"),
	)
	require.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("flow"))
	assert.Contains(t, keys, attribute.Key("outcome"))
}

func TestRecordersAreNilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordInvoiceAssembled(ctx, "invoice", "0100000")
		m.RecordComplianceCheck(ctx, "clearance", "accepted")
		m.RecordCredentialIssuance(ctx, "ccsid", "issued")
		m.RecordOnboardingRun(ctx, "NonProduction", "production")
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "egsbridge"}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordComplianceCheck(context.Background(), "reporting", "rejected")
	})
}
