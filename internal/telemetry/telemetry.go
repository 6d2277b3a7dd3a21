// Package telemetry installs the OpenTelemetry providers behind the otelobs
// observer: metrics exported in Prometheus format on a private registry and,
// optionally, spans pretty-printed to stdout.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Config selects the exporters.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Prometheus enables the metrics pipeline and the /metrics handler.
	Prometheus bool

	// StdoutTraces writes every finished span to TraceOutput.
	StdoutTraces bool
	TraceOutput  io.Writer
}

// Telemetry holds the installed providers. Disabled pipelines are no-ops.
type Telemetry struct {
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider

	handler   http.Handler
	shutdowns []func(context.Context) error
}

// Setup builds the providers selected by config.
func Setup(config Config) (*Telemetry, error) {
	if config.ServiceName == "" {
		config.ServiceName = "stratvithor"
	}

	telemetry := &Telemetry{
		MeterProvider:  metricnoop.NewMeterProvider(),
		TracerProvider: tracenoop.NewTracerProvider(),
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", config.ServiceName),
		attribute.String("service.version", config.ServiceVersion),
	)

	if config.Prometheus {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("error creating prometheus exporter: %w", err)
		}
		meterProvider := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		telemetry.MeterProvider = meterProvider
		telemetry.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
		telemetry.shutdowns = append(telemetry.shutdowns, meterProvider.Shutdown)
	}

	if config.StdoutTraces {
		options := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if config.TraceOutput != nil {
			options = append(options, stdouttrace.WithWriter(config.TraceOutput))
		}
		exporter, err := stdouttrace.New(options...)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("error creating stdout trace exporter: %w", err), telemetry.Shutdown(context.Background()))
		}
		tracerProvider := sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exporter),
			sdktrace.WithResource(res),
		)
		telemetry.TracerProvider = tracerProvider
		telemetry.shutdowns = append(telemetry.shutdowns, tracerProvider.Shutdown)
	}

	return telemetry, nil
}

// MetricsHandler serves the Prometheus scrape endpoint, or nil when metrics
// are disabled.
func (telemetry *Telemetry) MetricsHandler() http.Handler {
	return telemetry.handler
}

// Shutdown flushes and stops every installed provider.
func (telemetry *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range telemetry.shutdowns {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	telemetry.shutdowns = nil
	return errors.Join(errs...)
}
