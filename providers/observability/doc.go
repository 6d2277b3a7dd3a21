// Package observability defines the tracing, metrics and logging interfaces
// the report engine records through.
//
// The central entry point is [Provider], which composes [Tracer], [Metrics],
// and [Logger] into a single injectable dependency. Components accept a
// Provider through a functional option; a nil Provider costs nothing. An
// active Provider and [Span] travel through a [context.Context] with
// [ContextWithObserver] and [ContextWithSpan], and are read back with
// [ObserverFromContext] and [SpanFromContext].
//
// semconv.go holds the attribute keys, span names and metric names shared by
// all components.
package observability
