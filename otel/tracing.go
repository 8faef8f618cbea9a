// Package otel wires the OpenTelemetry SDK into millflow binaries. The
// engine emits spans through the global tracer provider; this package
// installs one.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup installs a tracer provider as the global OpenTelemetry provider and
// returns its shutdown function. Exporters are taken from the environment
// through the SDK defaults; with none configured, spans are recorded but not
// exported, which still exercises span timing and context propagation.
func Setup(ctx context.Context, serviceName, serviceVersion string, opts ...sdktrace.TracerProviderOption) (func(context.Context) error, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("building otel resource: %w", err)
	}

	opts = append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
