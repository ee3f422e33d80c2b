package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "neardup"

// Providers holds what Init set up for one process.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// Registry backs the /metrics endpoint.
	Registry *prometheus.Registry

	// Shutdown flushes pending telemetry within the configured timeout.
	// Call it before exit.
	Shutdown func(ctx context.Context) error
}

type shutdowns []func(context.Context) error

func (s shutdowns) run(ctx context.Context) error {
	var errs []error

	for i := len(s) - 1; i >= 0; i-- {
		errs = append(errs, s[i](ctx))
	}

	return errors.Join(errs...)
}

// Init installs the global OTel providers and builds the process logger.
// Metrics always land in a Prometheus registry; traces and metrics also go
// to OTLP when an endpoint is configured. Without one, tracing is a no-op.
func Init(cfg Config) (Providers, error) {
	ctx := context.Background()

	var stop shutdowns

	res, err := newResource(ctx, cfg)
	if err != nil {
		return Providers{}, err
	}

	tp, err := newTracerProvider(ctx, cfg, res, &stop)
	if err != nil {
		return Providers{}, errors.Join(err, stop.run(ctx))
	}

	registry := prometheus.NewRegistry()

	mp, err := newMeterProvider(ctx, cfg, res, registry, &stop)
	if err != nil {
		return Providers{}, errors.Join(err, stop.run(ctx))
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	timeout := cfg.shutdownTimeout()

	return Providers{
		Tracer:   tp.Tracer(instrumentationName),
		Meter:    mp.Meter(instrumentationName),
		Logger:   NewLogger(cfg),
		Registry: registry,
		Shutdown: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return stop.run(ctx)
		},
	}, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		attribute.String("neardup.mode", string(cfg.Mode)),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	if cfg.Rank != NoRank {
		attrs = append(attrs, attribute.Int("neardup.rank", cfg.Rank))
	}

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	return res, nil
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource, stop *shutdowns) (trace.TracerProvider, error) {
	if cfg.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider(), nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if cfg.OTLPHeaders != nil {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.OTLPHeaders))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler = sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}

	sampler = sdktrace.ParentBased(sampler)
	if !cfg.TraceVerbose {
		sampler = NewHotPathSampler(sampler)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithSpanProcessor(NewRedactingProcessor(sdktrace.NewBatchSpanProcessor(exporter))),
	)

	*stop = append(*stop, tp.Shutdown)

	return tp, nil
}

func newMeterProvider(
	ctx context.Context, cfg Config, res *resource.Resource, registry *prometheus.Registry, stop *shutdowns,
) (metric.MeterProvider, error) {
	prom, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res), sdkmetric.WithReader(prom)}

	if cfg.OTLPEndpoint != "" {
		expOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			expOpts = append(expOpts, otlpmetricgrpc.WithInsecure())
		}

		if cfg.OTLPHeaders != nil {
			expOpts = append(expOpts, otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders))
		}

		exporter, expErr := otlpmetricgrpc.New(ctx, expOpts...)
		if expErr != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", expErr)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	*stop = append(*stop, mp.Shutdown)

	return mp, nil
}
