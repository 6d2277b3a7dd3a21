package task

import (
	"slices"
	"time"
)

// Reference is an external source backing a generated section.
type Reference struct {
	Title   string `json:"title" validate:"required_without=URL"`
	URL     string `json:"url,omitempty" validate:"omitempty,url"`
	Snippet string `json:"snippet,omitempty"`
}

// Result is the structured output of one node: the section title, the
// generated text and the references it cites.
type Result struct {
	Title      string      `json:"title" validate:"required"`
	Text       string      `json:"text"`
	References []Reference `json:"references,omitempty" validate:"dive"`
}

// Clone returns a deep copy of the result.
func (result *Result) Clone() *Result {
	if result == nil {
		return nil
	}
	resultCopy := *result
	resultCopy.References = slices.Clone(result.References)
	return &resultCopy
}

// NodeState is the engine-owned state of one node.
type NodeState struct {
	Status      NodeStatus `json:"status"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the state.
func (state NodeState) Clone() NodeState {
	stateCopy := state
	stateCopy.Result = state.Result.Clone()
	if state.StartedAt != nil {
		startedAt := *state.StartedAt
		stateCopy.StartedAt = &startedAt
	}
	if state.CompletedAt != nil {
		completedAt := *state.CompletedAt
		stateCopy.CompletedAt = &completedAt
	}
	return stateCopy
}
