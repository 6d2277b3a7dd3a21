// Package ai defines the provider-agnostic chat types used by the report
// generator's molding step. A backend implementation maps [ChatRequest] to its
// own wire format and returns a [ChatResponse]; the rest of the module never
// sees provider-specific types.
package ai
