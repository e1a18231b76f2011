// Package tracing wraps the OpenTelemetry calls services make around each
// coordinator operation. Without a registered provider the spans are no-ops.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "dgtt/pkg/domain-errors"
)

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Start opens a span tagged with the entity it operates on.
func Start(ctx context.Context, tracer trace.Tracer, op, entityID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, op, trace.WithAttributes(attribute.String("dgtt.entity_id", entityID)))
}

// End records err on span and closes it. Domain rejections are tagged with
// their code but do not mark the span as failed.
func End(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	code := dErrors.CodeOf(err)
	span.SetAttributes(attribute.String("dgtt.error_code", string(code)))
	if code == dErrors.CodeInternal || code == dErrors.CodeUnavailable || code == dErrors.CodeTimeout {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
