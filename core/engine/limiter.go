package engine

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrency bounds simultaneous node executions when no limiter
// is configured.
const DefaultMaxConcurrency = 4

// Limiter caps simultaneous node executions. One Limiter shared by every
// engine gives a process-wide bound; one per engine gives a per-task bound.
type Limiter interface {
	Acquire(ctx context.Context) error
	TryAcquire() bool
	Release()
}

// WeightedLimiter is a Limiter over a weighted semaphore. Waiters are served
// in FIFO order.
type WeightedLimiter struct {
	semaphore *semaphore.Weighted
	size      int64
}

// NewLimiter creates a limiter admitting size concurrent nodes.
func NewLimiter(size int) *WeightedLimiter {
	if size <= 0 {
		size = DefaultMaxConcurrency
	}
	return &WeightedLimiter{semaphore: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Acquire waits for a slot or for ctx to be done.
func (limiter *WeightedLimiter) Acquire(ctx context.Context) error {
	return limiter.semaphore.Acquire(ctx, 1)
}

// TryAcquire takes a slot if one is free.
func (limiter *WeightedLimiter) TryAcquire() bool {
	return limiter.semaphore.TryAcquire(1)
}

// Release frees a slot.
func (limiter *WeightedLimiter) Release() {
	limiter.semaphore.Release(1)
}

// Size returns the number of slots.
func (limiter *WeightedLimiter) Size() int {
	return int(limiter.size)
}
