package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/luislascano01/Stratvithor/providers/search"
)

// Stage names where a node failed.
const (
	StageFetch    = "fetch"
	StageMold     = "mold"
	StageValidate = "validate"
)

// ErrRetryExhausted is returned when every fetch attempt failed with a
// transient error. The final error wraps both this sentinel and the last
// attempt's error.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// NodeExecutionError is a node failure surfaced to the engine.
type NodeExecutionError struct {
	NodeID string
	Stage  string
	Err    error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s %s failed: %v", e.NodeID, e.Stage, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// TransientFetchError marks a fetch failure as worth retrying.
type TransientFetchError struct {
	Err error
}

func (e *TransientFetchError) Error() string {
	return "transient fetch failure: " + e.Err.Error()
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// Transient reports true.
func (e *TransientFetchError) Transient() bool {
	return true
}

// ValidationError reports a result that does not match the section schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid section result: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsTransient is the default retry predicate: errors marked transient
// (TransientFetchError, HTTP 429 and 5xx, network timeouts) and per-attempt
// deadline expiry. Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return search.IsTransient(err)
}

var errNilResult = errors.New("molder returned no result")
