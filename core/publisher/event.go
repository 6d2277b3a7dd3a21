package publisher

import (
	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/task"
)

// EventType distinguishes the first event of a stream from the deltas.
type EventType string

const (
	// EventInit carries the graph and every node state at subscription time.
	EventInit EventType = "init"

	// EventUpdate carries one node's new state.
	EventUpdate EventType = "update"
)

// Event is one message of a task's progress stream.
type Event struct {
	Type   EventType       `json:"type"`
	TaskID string          `json:"task_id"`
	NodeID string          `json:"node_id,omitempty"`
	Status task.NodeStatus `json:"status,omitempty"`
	Result *task.Result    `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`

	Graph  *promptgraph.Visualization `json:"dag,omitempty"`
	States map[string]task.NodeState  `json:"states,omitempty"`
}

// UpdateEvent builds the delta for one applied transition.
func UpdateEvent(taskID, nodeID string, state task.NodeState) Event {
	return Event{
		Type:   EventUpdate,
		TaskID: taskID,
		NodeID: nodeID,
		Status: state.Status,
		Result: state.Result,
		Error:  state.Error,
	}
}

// InitEvent builds the first event of a subscription.
func InitEvent(graph *promptgraph.PromptGraph, snapshot task.Snapshot) Event {
	visualization := graph.Visualization()
	return Event{
		Type:   EventInit,
		TaskID: snapshot.TaskID,
		Graph:  &visualization,
		States: snapshot.States,
	}
}
