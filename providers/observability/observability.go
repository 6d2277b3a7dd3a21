package observability

import (
	"context"
	"time"
)

// Provider is what every instrumented component is handed: spans, metrics
// and structured logs behind one value. Components treat a nil Provider as
// "not observed".
type Provider interface {
	Tracer
	Metrics
	Logger
}

// Tracer starts spans.
type Tracer interface {
	// StartSpan starts a new span. The returned context carries the span.
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span is one timed unit of work, such as a task run or a node execution.
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	SetStatus(code StatusCode, description string)
	RecordError(err error)
	AddEvent(name string, attrs ...Attribute)
}

// StatusCode represents the status of a span
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// Metrics hands out instruments by name. Asking twice for the same name
// returns the same instrument.
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// Counter is a monotonically increasing metric
type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attribute)
}

// Histogram records distribution of values
type Histogram interface {
	Record(ctx context.Context, value float64, attrs ...Attribute)
}

// Logger writes leveled, structured log records.
type Logger interface {
	Trace(ctx context.Context, msg string, attrs ...Attribute)
	Debug(ctx context.Context, msg string, attrs ...Attribute)
	Info(ctx context.Context, msg string, attrs ...Attribute)
	Warn(ctx context.Context, msg string, attrs ...Attribute)
	Error(ctx context.Context, msg string, attrs ...Attribute)
}

// Attribute is a key-value pair attached to spans, metrics and logs.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an integer attribute
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Float64 creates a float64 attribute
func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value}
}

// Error creates an error attribute
func Error(err error) Attribute {
	if err == nil {
		return Attribute{Key: AttrError, Value: ""}
	}
	return Attribute{Key: AttrError, Value: err.Error()}
}

// TaskID tags a record with the report task it belongs to.
func TaskID(taskID string) Attribute {
	return String(AttrTaskID, taskID)
}

// DefinitionID tags a record with the graph definition of a task.
func DefinitionID(definitionID string) Attribute {
	return String(AttrDefinitionID, definitionID)
}

// NodeID tags a record with a graph node.
func NodeID(nodeID string) Attribute {
	return String(AttrNodeID, nodeID)
}

// NodeSection tags a record with the report section a node produces.
func NodeSection(section string) Attribute {
	return String(AttrNodeSection, section)
}

// NodeStatus tags a record with a node status. It accepts any string-backed
// status type.
func NodeStatus[S ~string](status S) Attribute {
	return String(AttrNodeStatus, string(status))
}

// SubscriberID tags a record with a progress subscription.
func SubscriberID(subscriberID uint64) Attribute {
	return Int64(AttrSubscriberID, int64(subscriberID))
}

// Attempt tags a record with the 1-based attempt number of a retried call.
func Attempt(attempt int) Attribute {
	return Int(AttrAttempt, attempt)
}
