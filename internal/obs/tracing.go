package obs

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracingConfig describes how spans are sampled and exported.
type TracingConfig struct {
	ServiceName   string
	Endpoint      string
	Exporter      string
	SamplingRatio float64
	Environment   string
}

// InitTracer installs the global tracer provider and W3C propagators.
// The returned function flushes and shuts the provider down.
func InitTracer(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	ratio := cfg.SamplingRatio
	if ratio <= 0 {
		ratio = 1
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(ratio)),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider.Shutdown, nil
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	switch name {
	case "", "otlp":
		var opts []otlptracehttp.Option
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %q", name)
	}
}
