// Package slogobs provides an observability.Provider backed by log/slog.
//
// Spans become debug log entries with their duration, counters keep running
// totals in memory, and log calls map to slog levels. Output format and level
// come from [WithFormat] and [WithLevel], or from the STRATVITHOR_LOG_FORMAT
// and STRATVITHOR_LOG_LEVEL environment variables.
package slogobs
