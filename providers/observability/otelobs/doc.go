// Package otelobs provides an observability.Provider backed by OpenTelemetry.
//
// Spans go to a trace.TracerProvider, counters and histograms to a
// metric.MeterProvider, and log calls to a slog.Logger annotated with the
// active trace and span ids. Without options the global providers installed
// by otel.SetTracerProvider and otel.SetMeterProvider are used.
package otelobs
