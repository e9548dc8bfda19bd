// Package telemetry sets up OpenTelemetry tracing and the Prometheus
// registry shared by every component that exports metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/aether/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Service keys under which the application publishes the providers.
const (
	RegistryService       = "telemetry.registry"
	TracerProviderService = "telemetry.tracer_provider"
)

const defaultServiceName = "aether"

// Telemetry owns the tracer provider and the metrics registry.
type Telemetry struct {
	Registry       *prometheus.Registry
	TracerProvider trace.TracerProvider

	sdk *sdktrace.TracerProvider
}

// Setup builds the telemetry stack. Spans are exported over OTLP/HTTP only
// when cfg.Endpoint is set; the tracer provider is installed globally either
// way so instrumented code needs no special casing.
func Setup(ctx context.Context, cfg config.TelemetryConfig, version string, logger *slog.Logger) (*Telemetry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", version),
	)

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(cfg)))),
	}

	if cfg.Endpoint != "" {
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Info("trace export enabled", "endpoint", cfg.Endpoint, "insecure", cfg.Insecure)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Telemetry{Registry: reg, TracerProvider: tp, sdk: tp}, nil
}

func sampleRatio(cfg config.TelemetryConfig) float64 {
	if cfg.SampleRatio <= 0 {
		return 1
	}
	return cfg.SampleRatio
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.sdk == nil {
		return nil
	}
	if err := t.sdk.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	return nil
}
