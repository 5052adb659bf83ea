package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const defaultExportInterval = 10 * time.Second

// Config selects where and how the agent exports traces and metrics.
type Config struct {
	// Endpoint is the OTLP/gRPC collector; empty disables export.
	Endpoint       string        `yaml:"endpoint"`
	ExportInterval time.Duration `yaml:"export_interval"`
	// SampleRatio is the fraction of request traces kept, 0 to 1.
	SampleRatio float64 `yaml:"sample_ratio"`
}

func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

// Identity is attached to every exported signal.
type Identity struct {
	Service  string
	Version  string
	Device   string
	Instance string
}

func (id Identity) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(id.Service),
		semconv.ServiceVersion(id.Version),
	}
	if id.Device != "" {
		attrs = append(attrs, semconv.HostName(id.Device))
	}
	if id.Instance != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(id.Instance))
	}
	return attrs
}

// Setup installs the global tracer and meter providers. When export is
// disabled the no-op providers stay in place. The returned function flushes
// and stops the providers.
func Setup(ctx context.Context, cfg Config, id Identity) (func(context.Context) error, error) {
	if !cfg.Enabled() {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(id.attributes()...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(sampleRatio(cfg.SampleRatio)))),
	)

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(interval))),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// sampleRatio treats an unset ratio as keep-everything.
func sampleRatio(r float64) float64 {
	switch {
	case r <= 0:
		return 1
	case r > 1:
		return 1
	default:
		return r
	}
}
