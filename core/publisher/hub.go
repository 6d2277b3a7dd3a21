package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/observability"
)

// DefaultQueueSize is the per-subscription queue bound.
const DefaultQueueSize = 256

// SubscriptionDeliveryError reports a transport failure for one subscriber.
// Only that subscriber is dropped.
type SubscriptionDeliveryError struct {
	TaskID         string
	SubscriptionID uint64
	Err            error
}

func (e *SubscriptionDeliveryError) Error() string {
	return fmt.Sprintf("delivery to subscriber %d of task %s failed: %v", e.SubscriptionID, e.TaskID, e.Err)
}

func (e *SubscriptionDeliveryError) Unwrap() error {
	return e.Err
}

// Hub routes events from the engines to subscriptions, keyed by task id.
// The engine only publishes; it never learns who listens.
type Hub struct {
	queueSize int
	observer  observability.Provider
	logger    *slog.Logger

	mutex  sync.RWMutex
	nextID uint64
	topics map[string]map[uint64]*Subscription
}

// Option configures a Hub.
type Option func(*Hub)

// WithQueueSize bounds each subscription's queue.
func WithQueueSize(size int) Option {
	return func(hub *Hub) {
		if size > 0 {
			hub.queueSize = size
		}
	}
}

// WithObserver counts dropped events and delivery failures.
func WithObserver(observer observability.Provider) Option {
	return func(hub *Hub) { hub.observer = observer }
}

// WithLogger sets the logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(hub *Hub) { hub.logger = logger }
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	hub := &Hub{
		queueSize: DefaultQueueSize,
		logger:    slog.Default(),
		topics:    make(map[string]map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(hub)
	}
	return hub
}

// Subscribe registers a reader for execution. The first queued event is an
// init event with the states at subscription time; every later transition
// follows as an update, with no gap and no duplicate. A task that already
// finished yields only the init event.
func (hub *Hub) Subscribe(execution *task.TaskExecution) *Subscription {
	var subscription *Subscription

	// Transitions publish under the task's write lock, so none can slip
	// between the snapshot and the registration.
	execution.View(func(snapshot task.Snapshot) {
		hub.mutex.Lock()
		hub.nextID++
		subscription = newSubscription(hub, hub.nextID, execution.ID, hub.queueSize)
		if !snapshot.Done {
			subscribers, exists := hub.topics[execution.ID]
			if !exists {
				subscribers = make(map[uint64]*Subscription)
				hub.topics[execution.ID] = subscribers
			}
			subscribers[subscription.ID] = subscription
		}
		hub.mutex.Unlock()

		subscription.start(InitEvent(execution.Graph, snapshot))
		if snapshot.Done {
			subscription.end()
		}
	})

	return subscription
}

// Publish queues an update for every subscriber of the task. It never blocks
// on a reader.
func (hub *Hub) Publish(taskID, nodeID string, state task.NodeState) {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()

	subscribers := hub.topics[taskID]
	if len(subscribers) == 0 {
		return
	}

	event := UpdateEvent(taskID, nodeID, state)
	for _, subscription := range subscribers {
		if subscription.push(event) {
			hub.recordDrop(subscription)
		}
	}
}

// Finish ends every stream of the task once its queued events are read.
func (hub *Hub) Finish(taskID string) {
	hub.mutex.Lock()
	subscribers := hub.topics[taskID]
	delete(hub.topics, taskID)
	hub.mutex.Unlock()

	for _, subscription := range subscribers {
		subscription.end()
	}
}

// Subscribers returns the number of live subscriptions of a task.
func (hub *Hub) Subscribers(taskID string) int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return len(hub.topics[taskID])
}

// Deliver pumps the subscription's events into send until the stream ends,
// ctx is done or send fails. A send failure closes the subscription and is
// returned as a *SubscriptionDeliveryError.
func (hub *Hub) Deliver(ctx context.Context, subscription *Subscription, send func(Event) error) error {
	for event, err := range subscription.Events(ctx) {
		if err != nil {
			return err
		}
		if sendErr := send(event); sendErr != nil {
			subscription.Close()
			deliveryErr := &SubscriptionDeliveryError{TaskID: subscription.TaskID, SubscriptionID: subscription.ID, Err: sendErr}
			hub.logger.WarnContext(ctx, "dropping subscriber", "task_id", subscription.TaskID, "subscription_id", subscription.ID, "error", sendErr)
			return deliveryErr
		}
	}
	return nil
}

func (hub *Hub) unsubscribe(subscription *Subscription) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	subscribers := hub.topics[subscription.TaskID]
	delete(subscribers, subscription.ID)
	if len(subscribers) == 0 {
		delete(hub.topics, subscription.TaskID)
	}
}

func (hub *Hub) recordDrop(subscription *Subscription) {
	if hub.observer == nil {
		return
	}
	ctx := context.Background()
	hub.observer.Counter(observability.MetricPublisherDropped).Add(ctx, 1,
		observability.TaskID(subscription.TaskID),
	)
	hub.observer.Debug(ctx, observability.EventSubscriberOverflow,
		observability.TaskID(subscription.TaskID),
		observability.SubscriberID(subscription.ID),
	)
}
