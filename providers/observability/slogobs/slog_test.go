package slogobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/luislascano01/Stratvithor/providers/observability"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestEnvConfiguration(t *testing.T) {
	t.Setenv("STRATVITHOR_LOG_FORMAT", "json")
	t.Setenv("STRATVITHOR_LOG_LEVEL", "debug")

	if got := GetFormatFromEnv(); got != FormatJSON {
		t.Errorf("GetFormatFromEnv() = %v, want json", got)
	}
	if got := GetLogLevelFromEnv(); got != slog.LevelDebug {
		t.Errorf("GetLogLevelFromEnv() = %v, want debug", got)
	}
}

func TestObserver_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	observer := New(WithFormat(FormatJSON), WithLevel(slog.LevelInfo), WithOutput(&buf))

	observer.Info(context.Background(), "node complete",
		observability.NodeID("3"),
		observability.Int("attempts", 2),
	)
	observer.Debug(context.Background(), "filtered out")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "node complete" || entry[observability.AttrNodeID] != "3" {
		t.Errorf("entry = %v", entry)
	}
}

func TestObserver_SpanInContext(t *testing.T) {
	var buf bytes.Buffer
	observer := New(WithFormat(FormatText), WithLevel(slog.LevelDebug), WithOutput(&buf))

	ctx, span := observer.StartSpan(context.Background(), observability.SpanNodeExecute)
	if observability.SpanFromContext(ctx) != span {
		t.Error("StartSpan did not attach the span to the context")
	}
	span.RecordError(errors.New("boom"))
	span.SetStatus(observability.StatusError, "fetch failed")
	span.End()

	output := buf.String()
	if !strings.Contains(output, "span ended") || !strings.Contains(output, "level=WARN") {
		t.Errorf("span end not logged at WARN: %q", output)
	}
	if !strings.Contains(output, "error=boom") {
		t.Errorf("recorded error missing: %q", output)
	}
}

func TestObserver_Counter(t *testing.T) {
	observer := New(WithOutput(&bytes.Buffer{}))

	counter := observer.Counter(observability.MetricNodeCount)
	counter.Add(context.Background(), 2)
	observer.Counter(observability.MetricNodeCount).Add(context.Background(), 3)

	if got := observer.CounterValue(observability.MetricNodeCount); got != 5 {
		t.Errorf("CounterValue() = %d, want 5", got)
	}
	if got := observer.CounterValue("unused"); got != 0 {
		t.Errorf("CounterValue(unused) = %d, want 0", got)
	}
}
