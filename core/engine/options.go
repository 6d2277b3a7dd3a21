package engine

import (
	"time"

	"github.com/luislascano01/Stratvithor/providers/observability"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLimiter shares limiter with other engines. Use it for a process-wide
// concurrency bound.
func WithLimiter(limiter Limiter) Option {
	return func(engine *Engine) { engine.limiter = limiter }
}

// WithMaxConcurrency gives the engine its own limiter of size slots.
func WithMaxConcurrency(size int) Option {
	return func(engine *Engine) { engine.limiter = NewLimiter(size) }
}

// WithNodeTimeout bounds each node's whole execution. Zero means no bound
// beyond the executor's own per-call timeouts.
func WithNodeTimeout(timeout time.Duration) Option {
	return func(engine *Engine) { engine.nodeTimeout = timeout }
}

// WithPublisher mirrors every transition to publisher.
func WithPublisher(publisher Publisher) Option {
	return func(engine *Engine) { engine.publisher = publisher }
}

// WithObserver enables spans, metrics and logs. Nil disables them.
func WithObserver(observer observability.Provider) Option {
	return func(engine *Engine) { engine.observer = observer }
}

// WithClock overrides the time source used for node timestamps.
func WithClock(now func() time.Time) Option {
	return func(engine *Engine) { engine.now = now }
}
