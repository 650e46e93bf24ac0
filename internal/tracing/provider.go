// Package tracing exports a span per executed case over OTLP and propagates
// W3C trace context to the service under test.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/apicontract/internal/config"
)

const (
	instrumentationName = "apicontract"

	// RunSpanName is the name of the span that parents every case span of a run.
	RunSpanName = "apicontract.run"
)

// Provider hands out the tracer used for case spans. The zero value and a
// nil *Provider are disabled and trace nothing.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// exportSettings is the tracing config after environment fallbacks.
type exportSettings struct {
	endpoint    string
	protocol    string
	serviceName string
	insecure    bool
	sampleRate  float64
}

func resolve(cfg config.TracingConfig) exportSettings {
	s := exportSettings{
		endpoint:    firstNonEmpty(cfg.Endpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		protocol:    firstNonEmpty(cfg.Protocol, os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"), "grpc"),
		serviceName: firstNonEmpty(cfg.ServiceName, os.Getenv("OTEL_SERVICE_NAME"), instrumentationName),
		insecure:    cfg.Insecure,
		sampleRate:  cfg.SampleRate,
	}
	s.protocol = strings.ToLower(strings.TrimSpace(s.protocol))
	if s.protocol == "http/protobuf" {
		s.protocol = "http"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Init builds a provider from config and installs it as the global tracer
// provider. Without an endpoint in config or OTEL_EXPORTER_OTLP_ENDPOINT the
// returned provider is disabled. targetURL, when set, is recorded on the
// resource so every span names the service under test.
func Init(ctx context.Context, cfg config.TracingConfig, targetURL string) (*Provider, error) {
	s := resolve(cfg)
	if s.endpoint == "" {
		return &Provider{}, nil
	}
	cfg.Endpoint = s.endpoint
	if s.sampleRate < 0 || s.sampleRate > 1 {
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", s.sampleRate)
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(s.serviceName)}
	if targetURL != "" {
		attrs = append(attrs, attribute.String("apicontract.target", targetURL))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	exporter, err := newExporter(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(samplerFor(s.sampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:        tp,
		tracer:    tp.Tracer(instrumentationName),
		propagate: cfg.ShouldPropagate(),
	}, nil
}

// samplerFor maps a ratio to a sampler. Zero disables sampling and one
// samples every run.
func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the case tracer, or a no-op tracer when disabled.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether case requests carry traceparent headers.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// StartRun opens the span that parents all case spans of one run. The
// returned function ends it with the number of failed cases.
func (p *Provider) StartRun(ctx context.Context, runID string, planned int) (context.Context, func(failed int)) {
	ctx, span := p.Tracer().Start(ctx, RunSpanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("apicontract.run_id", runID),
			attribute.Int("apicontract.cases", planned),
		),
	)
	return ctx, func(failed int) {
		var err error
		if failed > 0 {
			err = fmt.Errorf("%d of %d cases did not pass", failed, planned)
		}
		EndSpan(span, err, attribute.Int("apicontract.failed", failed))
	}
}

// Shutdown flushes buffered spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func newExporter(ctx context.Context, s exportSettings) (sdktrace.SpanExporter, error) {
	switch s.protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.endpoint)}
		if s.insecure {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.endpoint)}
		if s.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", s.protocol)
	}
}
