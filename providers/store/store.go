package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/luislascano01/Stratvithor/core/task"
)

// Store persists saved task records.
type Store interface {
	// Save writes the record, replacing any earlier record of the same task.
	Save(ctx context.Context, record *task.SavedTaskRecord) error

	// Get returns the record of a task, or a *NotFoundError.
	Get(ctx context.Context, taskID string) (*task.SavedTaskRecord, error)

	// List returns the ids of every saved task, sorted.
	List(ctx context.Context) ([]string, error)
}

// ErrNotFound matches every *NotFoundError through errors.Is.
var ErrNotFound = errors.New("saved task not found")

// NotFoundError is returned by Get for a task that was never saved.
type NotFoundError struct {
	TaskID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("saved task %s not found", e.TaskID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// PersistenceError wraps a backend failure during a store operation.
type PersistenceError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
