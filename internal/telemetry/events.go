package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("motheroflaunch")

// StartLaunchSpan opens a span for a launch scheduler operation on a day
func StartLaunchSpan(ctx context.Context, operation, date string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("launch.operation", operation),
		attribute.String("launch.date", date),
	)
	return tracer.Start(ctx, "launch."+operation, trace.WithAttributes(attrs...))
}

// StartExternalSpan opens a client span for a call to an outside service
// such as SES, S3 or Elasticsearch
func StartExternalSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, service+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("external.service", service),
			attribute.String("external.operation", operation),
		),
	)
}

// EndSpan records err on span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}
