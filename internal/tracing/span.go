package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSubmitSpan starts a client span for one PutMetricData call.
func StartSubmitSpan(ctx context.Context, tracer trace.Tracer, namespace string, points int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "CloudWatch.PutMetricData",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("rpc.system", "aws-api"),
		attribute.String("rpc.service", "CloudWatch"),
		attribute.String("rpc.method", "PutMetricData"),
		attribute.String("crankwatch.namespace", namespace),
		attribute.Int("crankwatch.batch.points", points),
	)
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
