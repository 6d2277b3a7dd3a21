// Package utils provides low-level helpers shared by the providers: JSON
// round-trips over HTTP with typed status errors, lenient JSON parsing of
// model output, and string helpers for log-safe previews.
package utils
