package otelobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/luislascano01/Stratvithor/providers/observability"
)

// InstrumentationName is the tracer and meter name used by default.
const InstrumentationName = "github.com/luislascano01/Stratvithor"

// Observer implements observability.Provider on OpenTelemetry.
type Observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger *slog.Logger

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// Option configures an Observer.
type Option func(*Observer)

// WithTracerProvider sets the tracer provider spans are created from.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *Observer) {
		o.tracer = provider.Tracer(InstrumentationName)
	}
}

// WithMeterProvider sets the meter provider instruments are created from.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *Observer) {
		o.meter = provider.Meter(InstrumentationName)
	}
}

// WithLogger sets the logger log calls are routed to.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		o.logger = logger
	}
}

// New creates an OpenTelemetry observer.
func New(opts ...Option) *Observer {
	observer := &Observer{
		tracer:     otel.Tracer(InstrumentationName),
		meter:      otel.Meter(InstrumentationName),
		logger:     slog.Default(),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
	for _, opt := range opts {
		opt(observer)
	}
	return observer
}

var _ observability.Provider = (*Observer)(nil)

// --- TRACING ---

func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	ctx, otelSpan := o.tracer.Start(ctx, name, trace.WithAttributes(toKeyValues(attrs)...))
	span := &otelSpanAdapter{span: otelSpan}
	return observability.ContextWithSpan(ctx, span), span
}

type otelSpanAdapter struct {
	span trace.Span
}

func (s *otelSpanAdapter) End() {
	s.span.End()
}

func (s *otelSpanAdapter) SetAttributes(attrs ...observability.Attribute) {
	s.span.SetAttributes(toKeyValues(attrs)...)
}

func (s *otelSpanAdapter) SetStatus(code observability.StatusCode, description string) {
	switch code {
	case observability.StatusOK:
		s.span.SetStatus(codes.Ok, description)
	case observability.StatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

func (s *otelSpanAdapter) RecordError(err error) {
	if err != nil {
		s.span.RecordError(err)
	}
}

func (s *otelSpanAdapter) AddEvent(name string, attrs ...observability.Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(toKeyValues(attrs)...))
}

// --- METRICS ---

func (o *Observer) Counter(name string) observability.Counter {
	o.mu.Lock()
	defer o.mu.Unlock()

	counter, exists := o.counters[name]
	if !exists {
		created, err := o.meter.Int64Counter(name)
		if err != nil {
			o.logger.Warn("failed to create counter", "metric", name, "error", err)
			return noopCounter{}
		}
		counter = created
		o.counters[name] = counter
	}
	return &otelCounter{counter: counter}
}

func (o *Observer) Histogram(name string) observability.Histogram {
	o.mu.Lock()
	defer o.mu.Unlock()

	histogram, exists := o.histograms[name]
	if !exists {
		created, err := o.meter.Float64Histogram(name, metric.WithUnit("s"))
		if err != nil {
			o.logger.Warn("failed to create histogram", "metric", name, "error", err)
			return noopHistogram{}
		}
		histogram = created
		o.histograms[name] = histogram
	}
	return &otelHistogram{histogram: histogram}
}

type otelCounter struct {
	counter metric.Int64Counter
}

func (c *otelCounter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	c.counter.Add(ctx, value, metric.WithAttributes(toKeyValues(attrs)...))
}

type otelHistogram struct {
	histogram metric.Float64Histogram
}

func (h *otelHistogram) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	h.histogram.Record(ctx, value, metric.WithAttributes(toKeyValues(attrs)...))
}

type noopCounter struct{}

func (noopCounter) Add(context.Context, int64, ...observability.Attribute) {}

type noopHistogram struct{}

func (noopHistogram) Record(context.Context, float64, ...observability.Attribute) {}

// --- LOGGING ---

func (o *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelDebug-4, msg, attrs)
}

func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelDebug, msg, attrs)
}

func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelInfo, msg, attrs)
}

func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelWarn, msg, attrs)
}

func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelError, msg, attrs)
}

func (o *Observer) log(ctx context.Context, level slog.Level, msg string, attrs []observability.Attribute) {
	logAttrs := make([]slog.Attr, 0, len(attrs)+2)
	if spanContext := trace.SpanContextFromContext(ctx); spanContext.IsValid() {
		logAttrs = append(logAttrs,
			slog.String("trace_id", spanContext.TraceID().String()),
			slog.String("span_id", spanContext.SpanID().String()),
		)
	}
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	o.logger.LogAttrs(ctx, level, msg, logAttrs...)
}

func toKeyValues(attrs []observability.Attribute) []attribute.KeyValue {
	keyValues := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		switch value := attr.Value.(type) {
		case string:
			keyValues = append(keyValues, attribute.String(attr.Key, value))
		case int:
			keyValues = append(keyValues, attribute.Int(attr.Key, value))
		case int64:
			keyValues = append(keyValues, attribute.Int64(attr.Key, value))
		case float64:
			keyValues = append(keyValues, attribute.Float64(attr.Key, value))
		case bool:
			keyValues = append(keyValues, attribute.Bool(attr.Key, value))
		case time.Duration:
			keyValues = append(keyValues, attribute.Float64(attr.Key, value.Seconds()))
		default:
			keyValues = append(keyValues, attribute.String(attr.Key, fmt.Sprint(value)))
		}
	}
	return keyValues
}
