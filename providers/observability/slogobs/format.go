package slogobs

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format represents the output format for logs.
type Format string

const (
	// FormatText is slog's key=value text output (default).
	FormatText Format = "text"

	// FormatJSON is one JSON object per line, for log aggregation.
	FormatJSON Format = "json"
)

// LevelTrace sits below debug and is filtered out unless asked for.
const LevelTrace = slog.LevelDebug - 4

// ParseFormat parses a format string. Unknown values yield FormatText.
func ParseFormat(s string) Format {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// ParseLevel parses a level name (trace, debug, info, warn, error).
// Unknown values yield slog.LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetFormatFromEnv reads STRATVITHOR_LOG_FORMAT, falling back to LOG_FORMAT.
func GetFormatFromEnv() Format {
	if format := os.Getenv("STRATVITHOR_LOG_FORMAT"); format != "" {
		return ParseFormat(format)
	}
	return ParseFormat(os.Getenv("LOG_FORMAT"))
}

// GetLogLevelFromEnv reads STRATVITHOR_LOG_LEVEL, falling back to LOG_LEVEL.
func GetLogLevelFromEnv() slog.Level {
	if level := os.Getenv("STRATVITHOR_LOG_LEVEL"); level != "" {
		return ParseLevel(level)
	}
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// NewHandler builds the slog handler for a format.
func NewHandler(format Format, level slog.Level, output io.Writer) slog.Handler {
	options := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.NewJSONHandler(output, options)
	}
	return slog.NewTextHandler(output, options)
}
