package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
)

// Options are the per-task flags chosen by the caller.
type Options struct {
	// Mock swaps the external fetch and generation calls for deterministic stubs.
	Mock bool `json:"mock"`

	// WebSearch enables live external lookups during fetch.
	WebSearch bool `json:"web_search"`

	// FinancialContext adds the subject's market data to every generation call.
	FinancialContext bool `json:"financial_context"`
}

// NewTaskID returns a fresh opaque task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// TaskExecution is one report-generation run: the graph it executes, the
// subject of the report and the state of every node.
//
// The node states are written only through Transition, which the execution
// engine owning the task calls from its scheduling loop. Readers take
// consistent copies through State, States, Snapshot or View.
type TaskExecution struct {
	ID           string
	DefinitionID string
	Graph        *promptgraph.PromptGraph
	Subject      string
	Options      Options
	CreatedAt    time.Time

	mutex         sync.RWMutex
	states        map[string]NodeState
	terminalCount int
	finishedAt    time.Time
}

// New creates a task with every node pending.
func New(taskID, definitionID string, graph *promptgraph.PromptGraph, subject string, options Options) *TaskExecution {
	states := make(map[string]NodeState, graph.Len())
	for _, nodeID := range graph.IDs() {
		states[nodeID] = NodeState{Status: StatusPending}
	}

	return &TaskExecution{
		ID:           taskID,
		DefinitionID: definitionID,
		Graph:        graph,
		Subject:      subject,
		Options:      options,
		CreatedAt:    time.Now().UTC(),
		states:       states,
	}
}

// Transition moves a node to next.Status, replacing its state with next.
// The move must be legal for the node state machine. onApplied, when non-nil,
// runs while the write lock is still held so observers see transitions in
// exactly the order they were applied.
func (execution *TaskExecution) Transition(nodeID string, next NodeState, onApplied func(applied NodeState)) error {
	execution.mutex.Lock()
	defer execution.mutex.Unlock()

	current, exists := execution.states[nodeID]
	if !exists {
		return fmt.Errorf("task %s has no node %q", execution.ID, nodeID)
	}
	if !CanTransition(current.Status, next.Status) {
		return transitionError(nodeID, current.Status, next.Status)
	}

	applied := next.Clone()
	execution.states[nodeID] = applied

	if applied.Status.IsTerminal() {
		execution.terminalCount++
		if execution.terminalCount == len(execution.states) {
			execution.finishedAt = time.Now().UTC()
			if applied.CompletedAt != nil {
				execution.finishedAt = *applied.CompletedAt
			}
		}
	}

	if onApplied != nil {
		onApplied(applied.Clone())
	}
	return nil
}

// State returns a copy of one node's state.
func (execution *TaskExecution) State(nodeID string) (NodeState, bool) {
	execution.mutex.RLock()
	defer execution.mutex.RUnlock()

	state, exists := execution.states[nodeID]
	if !exists {
		return NodeState{}, false
	}
	return state.Clone(), true
}

// States returns a copy of every node state keyed by node id.
func (execution *TaskExecution) States() map[string]NodeState {
	execution.mutex.RLock()
	defer execution.mutex.RUnlock()

	return execution.copyStates()
}

func (execution *TaskExecution) copyStates() map[string]NodeState {
	states := make(map[string]NodeState, len(execution.states))
	for nodeID, state := range execution.states {
		states[nodeID] = state.Clone()
	}
	return states
}

// IsDone reports whether every node reached a terminal status.
func (execution *TaskExecution) IsDone() bool {
	execution.mutex.RLock()
	defer execution.mutex.RUnlock()

	return execution.terminalCount == len(execution.states)
}

// FinishedAt returns when the last node became terminal, or the zero time
// while the task is still running.
func (execution *TaskExecution) FinishedAt() time.Time {
	execution.mutex.RLock()
	defer execution.mutex.RUnlock()

	return execution.finishedAt
}

// Snapshot is a consistent point-in-time copy of a task.
type Snapshot struct {
	TaskID       string               `json:"task_id"`
	DefinitionID string               `json:"definition_id"`
	Subject      string               `json:"subject"`
	Options      Options              `json:"options"`
	CreatedAt    time.Time            `json:"created_at"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
	Done         bool                 `json:"done"`
	States       map[string]NodeState `json:"node_states"`
}

// Snapshot returns a consistent copy of the task.
func (execution *TaskExecution) Snapshot() Snapshot {
	execution.mutex.RLock()
	defer execution.mutex.RUnlock()

	return execution.snapshotLocked()
}

func (execution *TaskExecution) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		TaskID:       execution.ID,
		DefinitionID: execution.DefinitionID,
		Subject:      execution.Subject,
		Options:      execution.Options,
		CreatedAt:    execution.CreatedAt,
		Done:         execution.terminalCount == len(execution.states),
		States:       execution.copyStates(),
	}
	if !execution.finishedAt.IsZero() {
		finishedAt := execution.finishedAt
		snapshot.FinishedAt = &finishedAt
	}
	return snapshot
}

// View calls fn with a snapshot while holding the read lock, so no transition
// can be applied (and observed) until fn returns. Subscribers use it to pair
// an initial snapshot with the live stream without gaps or duplicates.
func (execution *TaskExecution) View(fn func(snapshot Snapshot)) {
	execution.mutex.RLock()
	defer execution.mutex.RUnlock()

	fn(execution.snapshotLocked())
}
