package obs

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ExporterType selects which metrics/trace backend Metrics and Tracer push
// to. ExporterNone yields a no-op instance — the default, so running the
// CLI without any OTel configuration never touches the network.
type ExporterType string

const (
	ExporterNone     ExporterType = "none"
	ExporterStdout   ExporterType = "stdout"
	ExporterOTLPGRPC ExporterType = "otlp-grpc"
	ExporterOTLPHTTP ExporterType = "otlp-http"
)

// MetricsConfig configures the Metrics wrapper.
type MetricsConfig struct {
	Enabled      bool
	ServiceName  string
	ExporterType ExporterType
	OTLPEndpoint string
	OTLPInsecure bool
}

// DefaultMetricsConfig disables metrics (no-op meter).
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{ServiceName: "mavharvest", ExporterType: ExporterNone}
}

// Metrics wraps the harvest-specific OTel instruments: pairs processed,
// per-call duration, and publish batch errors.
type Metrics struct {
	cfg      MetricsConfig
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	shutdown func(context.Context) error

	mu sync.RWMutex

	pairsTotal    metric.Int64Counter
	callDuration  metric.Float64Histogram
	publishErrors metric.Int64Counter
}

// NewMetrics builds a Metrics instance. With cfg.Enabled false or
// ExporterType none, every instrument is a real (but unexported) OTel
// instrument backed by a no-op MeterProvider, so callers never need a nil
// check.
func NewMetrics(ctx context.Context, cfg MetricsConfig) (*Metrics, error) {
	m := &Metrics{cfg: cfg}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		m.provider = sdkmetric.NewMeterProvider()
		m.meter = m.provider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, m.registerInstruments()
	}

	exporter, err := m.createExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("obs: creating metrics exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes("", semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("obs: building metrics resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	m.provider = provider
	m.meter = provider.Meter(cfg.ServiceName)
	m.shutdown = provider.Shutdown

	if err := m.registerInstruments(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) createExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	switch m.cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()
	case ExporterOTLPGRPC:
		var opts []otlpmetricgrpc.Option
		if m.cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(m.cfg.OTLPEndpoint))
		}
		if m.cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case ExporterOTLPHTTP:
		var opts []otlpmetrichttp.Option
		if m.cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(m.cfg.OTLPEndpoint))
		}
		if m.cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("obs: unknown exporter type %q", m.cfg.ExporterType)
	}
}

func (m *Metrics) registerInstruments() error {
	var err error
	m.pairsTotal, err = m.meter.Int64Counter("mavharvest.harvest.pairs_total", metric.WithDescription("Station pairs processed, by terminal state"))
	if err != nil {
		return fmt.Errorf("obs: registering harvest_pairs_total: %w", err)
	}
	m.callDuration, err = m.meter.Float64Histogram("mavharvest.harvest.call_duration_ms", metric.WithDescription("Upstream call duration per pair"), metric.WithUnit("ms"))
	if err != nil {
		return fmt.Errorf("obs: registering harvest_call_duration_ms: %w", err)
	}
	m.publishErrors, err = m.meter.Int64Counter("mavharvest.publish.batch_errors_total", metric.WithDescription("Per-file publish failures"))
	if err != nil {
		return fmt.Errorf("obs: registering publish_batch_errors_total: %w", err)
	}
	return nil
}

// RecordPair records one terminal pair outcome.
func (m *Metrics) RecordPair(ctx context.Context, outcome string) {
	m.pairsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCallDuration records one upstream call's duration in milliseconds.
func (m *Metrics) RecordCallDuration(ctx context.Context, ms float64) {
	m.callDuration.Record(ctx, ms)
}

// RecordPublishErrors adds n to the publish error counter.
func (m *Metrics) RecordPublishErrors(ctx context.Context, n int64) {
	if n <= 0 {
		return
	}
	m.publishErrors.Add(ctx, n)
}

// Shutdown flushes and releases the underlying MeterProvider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown(ctx)
}

// SetGlobal registers m as the process-wide OTel MeterProvider.
func (m *Metrics) SetGlobal() {
	if m.cfg.Enabled && m.cfg.ExporterType != ExporterNone {
		otel.SetMeterProvider(m.provider)
	}
}
