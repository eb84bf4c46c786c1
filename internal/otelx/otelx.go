// Package otelx installs the process-wide OpenTelemetry tracer provider and
// propagators, and hands out the tracers internal packages use.
package otelx

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/lamgaraproperties/lamgara-web/internal/log"
	"github.com/lamgaraproperties/lamgara-web/internal/xerrors"
)

// ScopePrefix namespaces the instrumentation scope of every internal tracer.
const ScopePrefix = "lamgara/"

// Tracer returns the tracer for an internal package, e.g. Tracer("content").
// It resolves through the global provider on every call, so tracers created
// before Init still export once Init has run.
func Tracer(pkg string) trace.Tracer {
	return otel.Tracer(ScopePrefix + pkg)
}

type Options struct {
	Enabled bool
	// Endpoint is the OTLP gRPC collector as host:port.
	Endpoint  string
	Insecure  bool
	Sample    float64
	Service   string
	Component string
	Version   string
}

// Init installs the tracer provider. Disabled tracing still installs an SDK
// provider without an exporter, so request and log correlation ids exist.
// The returned function flushes and stops the exporter.
func Init(ctx context.Context, o Options) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if !o.Enabled {
		otel.SetTracerProvider(sdktrace.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, o)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.Sample))),
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(newResource(ctx, o)),
	)
	otel.SetTracerProvider(tp)
	log.FromContext(ctx).Info(ctx, "tracing enabled", "otlp_endpoint", o.Endpoint, "sample", o.Sample)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, o Options) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(o.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(o.Service + "/" + o.Version)),
	}
	if o.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	// the collector is local; the dial never waits on anything remote
	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	exp, err := otlptracegrpc.New(dialCtx, opts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "otlp exporter endpoint=%s", o.Endpoint)
	}
	return exp, nil
}

// newResource describes this process. Detector failures are logged and the
// attributes that were found are kept.
func newResource(ctx context.Context, o Options) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(o.Service),
		semconv.ServiceVersion(o.Version),
	}
	if o.Component != "" {
		attrs = append(attrs, attribute.String("service.component", o.Component))
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		log.FromContext(ctx).Warn(ctx, "otel resource detection incomplete", "error", err.Error())
		if res == nil || !errors.Is(err, resource.ErrPartialResource) {
			res = resource.NewSchemaless(attrs...)
		}
	}
	return res
}
