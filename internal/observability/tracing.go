package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerConfig names the service reported on every span's resource
// attributes. There's no exporter config here — a run's traces matter for
// local/ops introspection during development, not a wired collector
// endpoint, so the default SDK ships spans nowhere until one is attached
// via NewTracerProvider's WithSyncer/WithBatcher option, which the caller
// can still reach by wrapping the returned *sdktrace.TracerProvider.
type TracerConfig struct {
	ServiceName string
}

// NewTracerProvider builds an SDK tracer provider with a resource
// identifying this service, and registers it as the global provider so
// otel.Tracer(name) picks it up anywhere in the process.
func NewTracerProvider(cfg TracerConfig) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the named tracer off the global provider. Call
// NewTracerProvider once at startup before using this.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartRun opens the root span for one scheduler run, tagged with run_id
// per the domain stack's "one span per run" requirement.
func StartRun(ctx context.Context, tracer trace.Tracer, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "scout.run", trace.WithAttributes(
		attribute.String("run_id", runID),
	))
}

// StartDispatch opens a child span for one dispatched event within a run.
func StartDispatch(ctx context.Context, tracer trace.Tracer, eventType string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "scout.dispatch", trace.WithAttributes(
		attribute.String("event_type", eventType),
	))
}
