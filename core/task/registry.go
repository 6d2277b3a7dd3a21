package task

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var (
	// ErrTaskNotFound is returned for task ids the registry does not hold.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskExists is returned when adding a task id twice.
	ErrTaskExists = errors.New("task already registered")

	// ErrRegistryClosed is returned by Add after Close.
	ErrRegistryClosed = errors.New("task registry closed")
)

// Controller is the handle a registry keeps on whatever runs a task.
type Controller interface {
	// Cancel stops future dispatch and cancels in-flight work.
	Cancel()

	// Done is closed once every node of the task is terminal.
	Done() <-chan struct{}
}

// Entry is a registered task and the controller running it.
type Entry struct {
	Execution  *TaskExecution
	Controller Controller
}

// Registry holds live tasks in memory. It is constructed once at service
// start and handed to the components that need it; entries leave on Release
// or when a finished task outlives the configured TTL.
//
// Registry is safe for concurrent use.
type Registry struct {
	ttl     time.Duration
	onEvict func(taskID string)
	now     func() time.Time

	mutex   sync.RWMutex
	entries map[string]*Entry
	closed  bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTTL sets how long a finished task stays registered. Zero disables
// eviction.
func WithTTL(ttl time.Duration) RegistryOption {
	return func(registry *Registry) {
		registry.ttl = ttl
	}
}

// WithEvictionHook registers a callback run after an entry is removed, by
// Release or by eviction.
func WithEvictionHook(onEvict func(taskID string)) RegistryOption {
	return func(registry *Registry) {
		registry.onEvict = onEvict
	}
}

// WithClock overrides the registry's time source.
func WithClock(now func() time.Time) RegistryOption {
	return func(registry *Registry) {
		registry.now = now
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	registry := &Registry{
		now:     time.Now,
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

// Add registers a task with its controller.
func (registry *Registry) Add(execution *TaskExecution, controller Controller) error {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if registry.closed {
		return ErrRegistryClosed
	}
	if _, exists := registry.entries[execution.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, execution.ID)
	}
	registry.entries[execution.ID] = &Entry{Execution: execution, Controller: controller}
	return nil
}

// Get returns the entry for a task id.
func (registry *Registry) Get(taskID string) (*Entry, error) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	entry, exists := registry.entries[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return entry, nil
}

// IDs returns the registered task ids, sorted.
func (registry *Registry) IDs() []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	taskIDs := make([]string, 0, len(registry.entries))
	for taskID := range registry.entries {
		taskIDs = append(taskIDs, taskID)
	}
	slices.Sort(taskIDs)
	return taskIDs
}

// Release removes a task. A task that is still running is canceled first.
func (registry *Registry) Release(taskID string) error {
	registry.mutex.Lock()
	entry, exists := registry.entries[taskID]
	if exists {
		delete(registry.entries, taskID)
	}
	registry.mutex.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if !entry.Execution.IsDone() && entry.Controller != nil {
		entry.Controller.Cancel()
	}
	if registry.onEvict != nil {
		registry.onEvict(taskID)
	}
	return nil
}

// EvictExpired removes finished tasks whose finish time is older than the TTL
// and returns their ids, sorted.
func (registry *Registry) EvictExpired() []string {
	if registry.ttl <= 0 {
		return nil
	}
	cutoff := registry.now().Add(-registry.ttl)

	registry.mutex.Lock()
	evicted := make([]string, 0)
	for taskID, entry := range registry.entries {
		finishedAt := entry.Execution.FinishedAt()
		if finishedAt.IsZero() || finishedAt.After(cutoff) {
			continue
		}
		delete(registry.entries, taskID)
		evicted = append(evicted, taskID)
	}
	registry.mutex.Unlock()

	slices.Sort(evicted)
	if registry.onEvict != nil {
		for _, taskID := range evicted {
			registry.onEvict(taskID)
		}
	}
	return evicted
}

// Run evicts expired tasks every interval until ctx is done.
func (registry *Registry) Run(ctx context.Context, interval time.Duration) {
	if registry.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.EvictExpired()
		}
	}
}

// Close cancels every running task and rejects further additions. Entries
// stay readable so callers can still save them.
func (registry *Registry) Close() {
	registry.mutex.Lock()
	registry.closed = true
	running := make([]Controller, 0)
	for _, entry := range registry.entries {
		if entry.Controller != nil && !entry.Execution.IsDone() {
			running = append(running, entry.Controller)
		}
	}
	registry.mutex.Unlock()

	for _, controller := range running {
		controller.Cancel()
	}
}
