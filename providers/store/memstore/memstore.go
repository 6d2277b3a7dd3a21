// Package memstore is an in-memory store.Store. Records are kept encoded, so
// callers never share state with the store.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps saved records in a map. It is safe for concurrent use.
type Store struct {
	mutex   sync.RWMutex
	records map[string][]byte
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string][]byte)}
}

func (s *Store) Save(_ context.Context, record *task.SavedTaskRecord) error {
	payload, err := record.Encode()
	if err != nil {
		return &store.PersistenceError{Op: "save", TaskID: record.TaskID, Err: err}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.records[record.TaskID] = payload
	return nil
}

func (s *Store) Get(_ context.Context, taskID string) (*task.SavedTaskRecord, error) {
	s.mutex.RLock()
	payload, exists := s.records[taskID]
	s.mutex.RUnlock()

	if !exists {
		return nil, &store.NotFoundError{TaskID: taskID}
	}
	record, err := task.DecodeRecord(payload)
	if err != nil {
		return nil, &store.PersistenceError{Op: "get", TaskID: taskID, Err: err}
	}
	return record, nil
}

func (s *Store) List(context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	taskIDs := make([]string, 0, len(s.records))
	for taskID := range s.records {
		taskIDs = append(taskIDs, taskID)
	}
	slices.Sort(taskIDs)
	return taskIDs, nil
}
