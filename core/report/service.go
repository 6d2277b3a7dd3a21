package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/luislascano01/Stratvithor/core/engine"
	"github.com/luislascano01/Stratvithor/core/executor"
	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/publisher"
	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/observability"
	"github.com/luislascano01/Stratvithor/providers/store"
	"github.com/luislascano01/Stratvithor/providers/store/memstore"
)

// ErrInvalidRequest is returned for requests missing required fields.
var ErrInvalidRequest = errors.New("invalid report request")

// Service owns the live tasks of a process.
type Service struct {
	catalog      *promptgraph.Catalog
	executor     engine.NodeExecutor
	mockExecutor engine.NodeExecutor
	store        store.Store
	hub          *publisher.Hub
	registry     *task.Registry

	limiterMode    LimiterMode
	maxConcurrency int
	limiter        engine.Limiter
	nodeTimeout    time.Duration
	taskTTL        time.Duration

	observer observability.Provider
	logger   *slog.Logger

	// Tasks outlive the request that created them.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a service over catalog. Without WithExecutor every task runs
// on the mock executor.
func New(catalog *promptgraph.Catalog, opts ...Option) *Service {
	service := &Service{
		catalog:        catalog,
		mockExecutor:   executor.NewMock(0),
		limiterMode:    LimiterGlobal,
		maxConcurrency: engine.DefaultMaxConcurrency,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}

	if service.executor == nil {
		service.executor = service.mockExecutor
	}
	if service.store == nil {
		service.store = memstore.New()
	}
	if service.hub == nil {
		service.hub = publisher.NewHub(publisher.WithObserver(service.observer), publisher.WithLogger(service.logger))
	}
	if service.limiterMode != LimiterPerTask {
		service.limiterMode = LimiterGlobal
		service.limiter = engine.NewLimiter(service.maxConcurrency)
	}

	service.registry = task.NewRegistry(
		task.WithTTL(service.taskTTL),
		task.WithEvictionHook(func(taskID string) {
			service.hub.Finish(taskID)
			service.logger.Debug("task released", slog.String("task_id", taskID))
		}),
	)
	service.baseCtx, service.cancel = context.WithCancel(context.Background())
	return service
}

// Hub returns the publisher hub, for transports that pump subscriptions.
func (service *Service) Hub() *publisher.Hub {
	return service.hub
}

// CreateTask starts a report on subject from a catalog definition and
// returns its task id. The task keeps running after ctx ends.
func (service *Service) CreateTask(ctx context.Context, subject, definitionID string, options task.Options) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrInvalidRequest)
	}
	if definitionID == "" {
		return "", fmt.Errorf("%w: definition id is required", ErrInvalidRequest)
	}

	graph, err := service.catalog.Graph(definitionID)
	if err != nil {
		return "", err
	}

	execution := task.New(task.NewTaskID(), definitionID, graph, subject, options)

	nodeExecutor := service.executor
	if options.Mock {
		nodeExecutor = service.mockExecutor
	}

	engineOpts := []engine.Option{
		engine.WithPublisher(service.hub),
		engine.WithNodeTimeout(service.nodeTimeout),
		engine.WithObserver(service.observer),
	}
	if service.limiter != nil {
		engineOpts = append(engineOpts, engine.WithLimiter(service.limiter))
	} else {
		engineOpts = append(engineOpts, engine.WithMaxConcurrency(service.maxConcurrency))
	}
	taskEngine := engine.New(execution, nodeExecutor, engineOpts...)

	if err := service.registry.Add(execution, taskEngine); err != nil {
		return "", err
	}
	if err := taskEngine.Start(service.baseCtx); err != nil {
		return "", err
	}

	service.logger.InfoContext(ctx, "task created",
		slog.String("task_id", execution.ID),
		slog.String("definition_id", definitionID),
		slog.String("subject", subject),
		slog.Bool("mock", options.Mock),
		slog.Bool("web_search", options.WebSearch),
	)
	return execution.ID, nil
}

// Subscribe opens a progress stream: an init event, then live updates until
// the task finishes. The caller must Close the subscription.
func (service *Service) Subscribe(_ context.Context, taskID string) (*publisher.Subscription, error) {
	entry, err := service.registry.Get(taskID)
	if err != nil {
		return nil, err
	}
	return service.hub.Subscribe(entry.Execution), nil
}

// Status returns a snapshot of a live task.
func (service *Service) Status(taskID string) (task.Snapshot, error) {
	entry, err := service.registry.Get(taskID)
	if err != nil {
		return task.Snapshot{}, err
	}
	return entry.Execution.Snapshot(), nil
}

// NodeStatus returns the state of one node of a live task.
func (service *Service) NodeStatus(taskID, nodeID string) (task.NodeState, error) {
	entry, err := service.registry.Get(taskID)
	if err != nil {
		return task.NodeState{}, err
	}
	state, exists := entry.Execution.State(nodeID)
	if !exists {
		return task.NodeState{}, fmt.Errorf("%w: task %s has no node %q", task.ErrTaskNotFound, taskID, nodeID)
	}
	return state, nil
}

// Cancel stops a live task.
func (service *Service) Cancel(taskID string) error {
	entry, err := service.registry.Get(taskID)
	if err != nil {
		return err
	}
	entry.Controller.Cancel()
	return nil
}

// Wait blocks until a live task finishes or ctx ends.
func (service *Service) Wait(ctx context.Context, taskID string) error {
	entry, err := service.registry.Get(taskID)
	if err != nil {
		return err
	}
	select {
	case <-entry.Controller.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Save persists the task as it is now. Saving a finished task again writes
// an identical record.
func (service *Service) Save(ctx context.Context, taskID string) (*task.SavedTaskRecord, error) {
	entry, err := service.registry.Get(taskID)
	if err != nil {
		return nil, err
	}

	record := entry.Execution.Record(time.Now())
	if err := service.store.Save(ctx, record); err != nil {
		service.logger.ErrorContext(ctx, "save failed", slog.String("task_id", taskID), slog.String("error", err.Error()))
		return nil, err
	}
	return record, nil
}

// GetSaved loads a saved record. Unknown ids fail with *store.NotFoundError.
func (service *Service) GetSaved(ctx context.Context, taskID string) (*task.SavedTaskRecord, error) {
	return service.store.Get(ctx, taskID)
}

// ListSaved returns the ids of every saved task.
func (service *Service) ListSaved(ctx context.Context) ([]string, error) {
	return service.store.List(ctx)
}

// ListGraphDefinitions returns the ids of the valid catalog definitions.
func (service *Service) ListGraphDefinitions() []string {
	return service.catalog.List()
}

// ListTasks returns the ids of the live tasks.
func (service *Service) ListTasks() []string {
	return service.registry.IDs()
}

// Release drops a task from memory, canceling it if it is still running.
func (service *Service) Release(taskID string) error {
	return service.registry.Release(taskID)
}

// Run evicts expired finished tasks every interval until ctx ends.
func (service *Service) Run(ctx context.Context, interval time.Duration) {
	service.registry.Run(ctx, interval)
}

// Close cancels every running task. Live tasks stay readable so they can
// still be saved.
func (service *Service) Close() {
	service.registry.Close()
	service.cancel()
}
