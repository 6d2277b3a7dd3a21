package publisher

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// ErrStreamEnded is returned by Next once the task finished, or the
// subscription was closed, and the queue is empty.
var ErrStreamEnded = errors.New("event stream ended")

// Subscription is one reader's view of a task's progress stream. It is safe
// for one reader and any number of publishers.
type Subscription struct {
	ID     uint64
	TaskID string

	hub      *Hub
	capacity int
	notify   chan struct{}

	mutex sync.Mutex
	// initial is held apart from queue so overflow never evicts it.
	initial *Event
	queue   []Event
	dropped uint64
	ended   bool
}

func newSubscription(hub *Hub, id uint64, taskID string, capacity int) *Subscription {
	return &Subscription{
		ID:       id,
		TaskID:   taskID,
		hub:      hub,
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		queue:    make([]Event, 0, min(capacity, 16)),
	}
}

// start sets the init event that Next returns before any queued update.
func (subscription *Subscription) start(event Event) {
	subscription.mutex.Lock()
	subscription.initial = &event
	subscription.mutex.Unlock()

	subscription.signal()
}

// push appends an event, dropping the oldest one when the queue is full.
// It reports whether an event was dropped.
func (subscription *Subscription) push(event Event) bool {
	subscription.mutex.Lock()
	if subscription.ended {
		subscription.mutex.Unlock()
		return false
	}

	overflow := len(subscription.queue) >= subscription.capacity
	if overflow {
		subscription.queue[0] = Event{}
		subscription.queue = subscription.queue[1:]
		subscription.dropped++
	}
	subscription.queue = append(subscription.queue, event)
	subscription.mutex.Unlock()

	subscription.signal()
	return overflow
}

// end stops accepting events. Queued events stay readable.
func (subscription *Subscription) end() {
	subscription.mutex.Lock()
	subscription.ended = true
	subscription.mutex.Unlock()

	subscription.signal()
}

func (subscription *Subscription) signal() {
	select {
	case subscription.notify <- struct{}{}:
	default:
	}
}

// Next returns the oldest queued event, waiting for one if the queue is
// empty. It returns ErrStreamEnded after the last event, or ctx.Err().
func (subscription *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		subscription.mutex.Lock()
		if subscription.initial != nil {
			event := *subscription.initial
			subscription.initial = nil
			subscription.mutex.Unlock()
			return event, nil
		}
		if len(subscription.queue) > 0 {
			event := subscription.queue[0]
			subscription.queue[0] = Event{}
			subscription.queue = subscription.queue[1:]
			subscription.mutex.Unlock()
			return event, nil
		}
		ended := subscription.ended
		subscription.mutex.Unlock()

		if ended {
			return Event{}, ErrStreamEnded
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-subscription.notify:
		}
	}
}

// Events ranges over the stream. The sequence stops after the first error,
// which is yielded unless it is ErrStreamEnded.
func (subscription *Subscription) Events(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			event, err := subscription.Next(ctx)
			if errors.Is(err, ErrStreamEnded) {
				return
			}
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

// Dropped returns how many events were discarded because the reader fell
// behind.
func (subscription *Subscription) Dropped() uint64 {
	subscription.mutex.Lock()
	defer subscription.mutex.Unlock()
	return subscription.dropped
}

// Close unsubscribes. Pending events are discarded.
func (subscription *Subscription) Close() {
	subscription.hub.unsubscribe(subscription)

	subscription.mutex.Lock()
	subscription.ended = true
	subscription.initial = nil
	subscription.queue = nil
	subscription.mutex.Unlock()

	subscription.signal()
}
