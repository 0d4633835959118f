package obs

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerConfig configures the Tracer wrapper.
type TracerConfig struct {
	Enabled      bool
	ServiceName  string
	ExporterType ExporterType
	OTLPEndpoint string
	OTLPInsecure bool
}

// DefaultTracerConfig disables tracing (no-op tracer).
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{ServiceName: "mavharvest", ExporterType: ExporterNone}
}

// Tracer wraps one tracer span per harvest run.
type Tracer struct {
	cfg      TracerConfig
	provider trace.TracerProvider
	tracer   trace.Tracer
	shutdown func(context.Context) error
	mu       sync.RWMutex
}

// NewTracer builds a Tracer. Disabled configurations yield a real no-op
// TracerProvider, so StartRunSpan is always safe to call.
func NewTracer(ctx context.Context, cfg TracerConfig) (*Tracer, error) {
	t := &Tracer{cfg: cfg}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		t.provider = noop.NewTracerProvider()
		t.tracer = t.provider.Tracer(cfg.ServiceName)
		t.shutdown = func(context.Context) error { return nil }
		return t, nil
	}

	exporter, err := t.createExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("obs: creating trace exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes("", semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("obs: building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	t.provider = provider
	t.tracer = provider.Tracer(cfg.ServiceName)
	t.shutdown = provider.Shutdown
	return t, nil
}

func (t *Tracer) createExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	switch t.cfg.ExporterType {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLPGRPC:
		var opts []otlptracegrpc.Option
		if t.cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(t.cfg.OTLPEndpoint))
		}
		if t.cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case ExporterOTLPHTTP:
		var opts []otlptracehttp.Option
		if t.cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(t.cfg.OTLPEndpoint))
		}
		if t.cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("obs: unknown exporter type %q", t.cfg.ExporterType)
	}
}

// StartRunSpan starts a span covering one orchestrator run, tagged with the
// run id and travel date.
func (t *Tracer) StartRunSpan(ctx context.Context, runID, travelDate string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "mavharvest.run_daily", trace.WithAttributes(
		attribute.String("mavharvest.run_id", runID),
		attribute.String("mavharvest.travel_date", travelDate),
	))
}

// Shutdown flushes and releases the underlying TracerProvider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown(ctx)
}

// SetGlobal registers t as the process-wide OTel TracerProvider.
func (t *Tracer) SetGlobal() {
	if t.cfg.Enabled && t.cfg.ExporterType != ExporterNone {
		otel.SetTracerProvider(t.provider)
	}
}
