package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/arthurmvo/Coffee-Shop/authz"
)

const meterName = "github.com/arthurmvo/Coffee-Shop/authz"

// Metrics counts authorization decisions and signing key refreshes. It
// implements authz.MetricsRecorder.
type Metrics struct {
	provider  *sdkmetric.MeterProvider
	registry  *prometheus.Registry
	decisions metric.Int64Counter
	refreshes metric.Int64Counter
}

var _ authz.MetricsRecorder = (*Metrics)(nil)

// NewMetrics creates a meter provider exporting to its own Prometheus registry
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	m, err := newMetrics(provider.Meter(meterName))
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}
	m.provider = provider
	m.registry = registry
	return m, nil
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	decisions, err := meter.Int64Counter(
		"authz.decisions",
		metric.WithDescription("Authorization decisions by required permission and outcome"),
	)
	if err != nil {
		return nil, err
	}

	refreshes, err := meter.Int64Counter(
		"authz.key_refreshes",
		metric.WithDescription("Signing key set refresh attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{decisions: decisions, refreshes: refreshes}, nil
}

// RecordDecision counts one allow or deny. outcome is "allowed" or the
// failure kind.
func (m *Metrics) RecordDecision(ctx context.Context, permission, outcome string) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("permission", permission),
		attribute.String("outcome", outcome),
	))
}

// RecordKeyRefresh counts one key set refresh attempt
func (m *Metrics) RecordKeyRefresh(ctx context.Context, outcome string) {
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Handler serves the metrics in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
