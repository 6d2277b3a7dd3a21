// Package publisher mirrors node state transitions to live subscribers.
//
// A Hub fans update events out to every subscription of a task. Each
// subscription owns a bounded queue: when a reader falls behind, the oldest
// queued event is dropped, so publishing never blocks the engine.
//
// Subscribing pairs an init snapshot with the live stream atomically:
//
//	subscription := hub.Subscribe(execution)
//	defer subscription.Close()
//
//	for event, err := range subscription.Events(ctx) {
//	    if err != nil {
//	        break
//	    }
//	    send(event)
//	}
//
// The stream ends with ErrStreamEnded once the task has finished and every
// queued event was read.
package publisher
