package tracing

import sdktrace "go.opentelemetry.io/otel/sdk/trace"

// NewProviderFor wraps an existing tracer provider.
func NewProviderFor(tp *sdktrace.TracerProvider, propagate bool) *Provider {
	return &Provider{tp: tp, tracer: tp.Tracer(instrumentationName), propagate: propagate}
}

var SamplerFor = samplerFor
