// Package telemetry configures OpenTelemetry tracing for the trigger service.
//
// Custom span attributes use the `triggers.` prefix.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "device_triggers/engine"

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider installs an OTLP gRPC trace provider. An empty endpoint
// leaves the global noop provider in place.
func InitTraceProvider(ctx context.Context, endpoint, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("device-triggers"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// StartPassSpan opens the parent span of one evaluation pass.
func StartPassSpan(ctx context.Context, deviceID, class string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "triggers.pass",
		trace.WithAttributes(
			attribute.String("triggers.device_id", deviceID),
			attribute.String("triggers.message_class", class),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}

// EndPassSpan records how many subscriptions were evaluated and fired.
func EndPassSpan(span trace.Span, evaluated, triggered int, err error) {
	span.SetAttributes(
		attribute.Int("triggers.evaluated", evaluated),
		attribute.Int("triggers.triggered", triggered),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// StartEvaluationSpan opens a child span for one subscription.
func StartEvaluationSpan(ctx context.Context, owner, subscriptionID, parameter string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "triggers.evaluate",
		trace.WithAttributes(
			attribute.String("triggers.owner", owner),
			attribute.String("triggers.subscription_id", subscriptionID),
			attribute.String("triggers.parameter", parameter),
		),
	)
}

// EndEvaluationSpan records the outcome reason of one subscription.
func EndEvaluationSpan(span trace.Span, reason string, fired bool) {
	span.SetAttributes(
		attribute.String("triggers.reason", reason),
		attribute.Bool("triggers.fired", fired),
	)
	span.End()
}
