package report

import (
	"log/slog"
	"time"

	"github.com/luislascano01/Stratvithor/core/engine"
	"github.com/luislascano01/Stratvithor/core/publisher"
	"github.com/luislascano01/Stratvithor/providers/observability"
	"github.com/luislascano01/Stratvithor/providers/store"
)

// LimiterMode selects how the concurrency bound is shared.
type LimiterMode string

const (
	// LimiterGlobal shares one bound across every task of the service.
	LimiterGlobal LimiterMode = "global"

	// LimiterPerTask gives each task its own bound.
	LimiterPerTask LimiterMode = "per_task"
)

// Option configures a Service.
type Option func(*Service)

// WithExecutor sets the executor of tasks created without the mock option.
func WithExecutor(executor engine.NodeExecutor) Option {
	return func(service *Service) { service.executor = executor }
}

// WithMockExecutor sets the executor of tasks created with the mock option.
func WithMockExecutor(executor engine.NodeExecutor) Option {
	return func(service *Service) { service.mockExecutor = executor }
}

// WithStore sets where saved records go.
func WithStore(store store.Store) Option {
	return func(service *Service) { service.store = store }
}

// WithHub sets the publisher hub.
func WithHub(hub *publisher.Hub) Option {
	return func(service *Service) { service.hub = hub }
}

// WithConcurrency sets the limiter mode and the number of concurrent node
// executions it admits.
func WithConcurrency(mode LimiterMode, size int) Option {
	return func(service *Service) {
		service.limiterMode = mode
		service.maxConcurrency = size
	}
}

// WithNodeTimeout bounds each node execution.
func WithNodeTimeout(timeout time.Duration) Option {
	return func(service *Service) { service.nodeTimeout = timeout }
}

// WithTaskTTL sets how long finished tasks stay in memory after they finish.
func WithTaskTTL(ttl time.Duration) Option {
	return func(service *Service) { service.taskTTL = ttl }
}

// WithObserver enables observability for every task.
func WithObserver(observer observability.Provider) Option {
	return func(service *Service) { service.observer = observer }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(service *Service) { service.logger = logger }
}
