package tracing

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/result"
)

// SpanName is the name of the client span recorded for every case.
const SpanName = "apicontract.case"

// StartCaseSpan starts the client span covering one case execution.
func StartCaseSpan(ctx context.Context, tracer trace.Tracer, c endpoint.Case) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.request.method", string(c.Method)),
		attribute.String("url.template", c.Path),
		attribute.String("apicontract.case", c.ID()),
	)
	return ctx, span
}

// EndCaseSpan records the outcome of a case on its span and ends it.
func EndCaseSpan(span trace.Span, r result.TestResult) {
	attrs := []attribute.KeyValue{
		attribute.String("apicontract.outcome", string(r.Outcome)),
	}
	if r.Status != 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", r.Status))
	}
	if r.Kind != result.KindNone {
		attrs = append(attrs, attribute.String("apicontract.failure_kind", string(r.Kind)))
	}
	var err error
	if !r.Passed() {
		err = errors.New(r.Detail())
	}
	EndSpan(span, err, attrs...)
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

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
