package task

import (
	"errors"
	"fmt"
)

// NodeStatus is the lifecycle state of one node within a task.
type NodeStatus string

const (
	// StatusPending means at least one parent has not completed yet.
	StatusPending NodeStatus = "pending"

	// StatusReady means every parent completed and the node awaits dispatch.
	StatusReady NodeStatus = "ready"

	// StatusProcessing means the node's fetch/mold work is in flight.
	StatusProcessing NodeStatus = "processing"

	// StatusComplete is terminal: the node produced a result.
	StatusComplete NodeStatus = "complete"

	// StatusFailed is terminal: the node's work failed or was canceled.
	StatusFailed NodeStatus = "failed"

	// StatusBlocked is terminal: an ancestor failed, so the node never ran.
	StatusBlocked NodeStatus = "blocked"
)

// IsTerminal reports whether no further transition can leave the status.
func (status NodeStatus) IsTerminal() bool {
	switch status {
	case StatusComplete, StatusFailed, StatusBlocked:
		return true
	default:
		return false
	}
}

// ErrInvalidTransition is returned when a state change violates the node
// state machine.
var ErrInvalidTransition = errors.New("invalid node status transition")

// allowedTransitions encodes the node state machine:
//
//	pending -> ready -> processing -> complete | failed
//	pending | ready -> blocked
var allowedTransitions = map[NodeStatus][]NodeStatus{
	StatusPending:    {StatusReady, StatusBlocked},
	StatusReady:      {StatusProcessing, StatusBlocked},
	StatusProcessing: {StatusComplete, StatusFailed},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to NodeStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func transitionError(nodeID string, from, to NodeStatus) error {
	return fmt.Errorf("%w: node %q %s -> %s", ErrInvalidTransition, nodeID, from, to)
}
