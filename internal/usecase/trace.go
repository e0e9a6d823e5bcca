package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	pipelineTracer = otel.Tracer("live-links/internal/usecase")
	untracedSpan   = trace.SpanFromContext(context.Background())
)

// startUsecaseSpan opens a child span for one pipeline stage. Cron runs have
// no parent span and stay untraced; only HTTP triggers produce stage spans.
func startUsecaseSpan(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if stage == "" || !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return ctx, untracedSpan
	}
	return pipelineTracer.Start(ctx, stage, trace.WithAttributes(attrs...))
}

// failSpan marks span as failed and returns err unchanged.
func failSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
