// Package telemetry wires OpenTelemetry traces and metrics for wpg.
//
// Settings come from the otel.* keys of internal/config, so they can be set
// in config.yaml or through the environment:
//
//	otel.enabled           WPG_OTEL_ENABLED           install SDK providers (default off)
//	otel.stdout            WPG_OTEL_STDOUT            pretty-print spans and metrics
//	otel.service-name      WPG_OTEL_SERVICE_NAME      resource service name (default "wpg")
//	otel.endpoint          OTEL_EXPORTER_OTLP_ENDPOINT          OTLP gRPC traces
//	otel.metrics-endpoint  OTEL_EXPORTER_OTLP_METRICS_ENDPOINT  OTLP HTTP metrics
//	otel.metric-interval   WPG_OTEL_METRIC_INTERVAL   export period for metrics
//
// When disabled, no-op providers are installed and storage is not wrapped.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/wpgraph/wpgraph/internal/config"
)

const instrumentationScope = "github.com/wpgraph/wpgraph"

var shutdownFns []func(context.Context) error

// Settings select the providers Init installs.
type Settings struct {
	Enabled         bool
	ServiceName     string
	Version         string
	Stdout          bool
	Endpoint        string
	MetricsEndpoint string
	MetricInterval  time.Duration

	// Out receives stdout exporter output; nil means os.Stdout.
	Out io.Writer
}

// LoadSettings reads the otel.* keys for a binary at version.
func LoadSettings(version string) Settings {
	return Settings{
		Enabled:         config.GetBool(config.KeyOtelEnabled),
		ServiceName:     config.GetString(config.KeyOtelServiceName),
		Version:         version,
		Stdout:          config.GetBool(config.KeyOtelStdout),
		Endpoint:        config.GetString(config.KeyOtelEndpoint),
		MetricsEndpoint: config.GetString(config.KeyOtelMetricsEndpoint),
		MetricInterval:  config.GetDuration(config.KeyOtelMetricInterval),
	}
}

// Enabled reports whether otel.enabled is set.
func Enabled() bool {
	return config.GetBool(config.KeyOtelEnabled)
}

// Init installs global providers for s. A disabled s installs no-ops.
func Init(ctx context.Context, s Settings) error {
	if !s.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}
	if s.ServiceName == "" {
		s.ServiceName = "wpg"
	}
	if s.MetricInterval <= 0 {
		s.MetricInterval = 30 * time.Second
	}
	if s.Out == nil {
		s.Out = os.Stdout
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(s.ServiceName),
			semconv.ServiceVersionKey.String(s.Version),
		),
		resource.WithHost(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	tp, err := s.traceProvider(ctx, res)
	if err != nil {
		return fmt.Errorf("telemetry: trace provider: %w", err)
	}
	otel.SetTracerProvider(tp)
	shutdownFns = append(shutdownFns, tp.Shutdown)

	mp, err := s.meterProvider(ctx, res)
	if err != nil {
		return fmt.Errorf("telemetry: metric provider: %w", err)
	}
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)
	return nil
}

func (s Settings) traceProvider(ctx context.Context, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if s.Endpoint != "" {
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(s.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	// Enabled with no endpoint still prints, otherwise spans would vanish.
	if s.Stdout || s.Endpoint == "" {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(s.Out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithSyncer(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func (s Settings) meterProvider(ctx context.Context, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if s.Stdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(s.Out))
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(s.MetricInterval))))
	}
	endpoint := s.MetricsEndpoint
	if endpoint == "" {
		endpoint = s.Endpoint
	}
	if endpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(s.MetricInterval))))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Tracer returns a tracer for name, or for the module scope when name is empty.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter for name, or for the module scope when name is empty.
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes and stops the providers installed by Init.
func Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range shutdownFns {
		errs = append(errs, fn(ctx))
	}
	shutdownFns = nil
	return errors.Join(errs...)
}
