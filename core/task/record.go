package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
)

// SavedTaskRecord is the persisted form of a task: the graph as drawn for
// visualization and the node states at the moment of the save.
type SavedTaskRecord struct {
	TaskID       string                    `json:"task_id"`
	DefinitionID string                    `json:"definition_id"`
	Subject      string                    `json:"subject"`
	Graph        promptgraph.Visualization `json:"dag"`
	NodeStates   map[string]NodeState      `json:"node_states"`
	Timestamp    time.Time                 `json:"timestamp"`
}

// Record captures the task as a SavedTaskRecord. A finished task is stamped
// with its finish time, so saving it repeatedly yields identical records;
// a task still running is stamped with now.
func (execution *TaskExecution) Record(now time.Time) *SavedTaskRecord {
	execution.mutex.RLock()
	defer execution.mutex.RUnlock()

	timestamp := now.UTC()
	if !execution.finishedAt.IsZero() {
		timestamp = execution.finishedAt
	}

	return &SavedTaskRecord{
		TaskID:       execution.ID,
		DefinitionID: execution.DefinitionID,
		Subject:      execution.Subject,
		Graph:        execution.Graph.Visualization(),
		NodeStates:   execution.copyStates(),
		Timestamp:    timestamp,
	}
}

// Encode serializes the record. Map keys are emitted in sorted order, so equal
// records always encode to identical bytes.
func (record *SavedTaskRecord) Encode() ([]byte, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("error encoding saved task %s: %w", record.TaskID, err)
	}
	return payload, nil
}

// DecodeRecord parses a payload produced by Encode.
func DecodeRecord(payload []byte) (*SavedTaskRecord, error) {
	var record SavedTaskRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("error decoding saved task: %w", err)
	}
	return &record, nil
}
