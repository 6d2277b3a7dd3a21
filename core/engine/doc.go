// Package engine executes one task's prompt graph.
//
// An Engine walks the graph in dependency order: a node becomes ready once
// every parent completed, ready nodes are dispatched in ascending id order as
// limiter slots free up, and each dispatched node runs on its own goroutine.
// A single loop goroutine applies every state transition, so the node state
// machine and the published event order never race.
//
// A failed node never fails the task: its descendants end blocked while the
// rest of the graph keeps running. Canceling the task stops dispatch,
// cancels in-flight nodes (which end failed) and blocks everything that had
// not started.
//
//	eng := engine.New(execution, executor.NewMock(0),
//	    engine.WithLimiter(limiter),
//	    engine.WithPublisher(hub),
//	)
//	eng.Start(ctx)
//	err := eng.Wait(ctx)
package engine
