package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/luislascano01/Stratvithor/core/executor"
	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/observability"
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrTaskCanceled is the diagnostic of nodes failed or blocked by Cancel.
	ErrTaskCanceled = errors.New("task canceled")
)

// NodeExecutor runs one node. *executor.Executor implements it.
type NodeExecutor interface {
	Execute(ctx context.Context, node promptgraph.PromptNode, accumulated executor.Accumulated) (*task.Result, error)
}

// Publisher receives every applied transition. Publish is called while the
// transition is being applied and must not block.
type Publisher interface {
	Publish(taskID, nodeID string, state task.NodeState)
	Finish(taskID string)
}

// Engine runs one TaskExecution to completion.
type Engine struct {
	execution   *task.TaskExecution
	executor    NodeExecutor
	limiter     Limiter
	publisher   Publisher
	observer    observability.Provider
	nodeTimeout time.Duration
	now         func() time.Time

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	messages  chan message
}

// New creates an engine for execution. Nothing runs until Start.
func New(execution *task.TaskExecution, nodeExecutor NodeExecutor, opts ...Option) *Engine {
	engine := &Engine{
		execution: execution,
		executor:  nodeExecutor,
		now:       time.Now,
		cancel:    func() {},
		done:      make(chan struct{}),
		// Every sender sends at most twice per node, so sends never block.
		messages: make(chan message, 2*execution.Graph.Len()+1),
	}
	for _, opt := range opts {
		opt(engine)
	}
	if engine.limiter == nil {
		engine.limiter = NewLimiter(DefaultMaxConcurrency)
	}
	return engine
}

// Execution returns the task the engine runs.
func (engine *Engine) Execution() *task.TaskExecution {
	return engine.execution
}

// Start launches the scheduling loop. The task runs until every node is
// terminal; canceling ctx has the same effect as Cancel.
func (engine *Engine) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	engine.startOnce.Do(func() {
		err = nil
		runCtx, cancel := context.WithCancel(ctx)
		engine.cancel = cancel
		go engine.run(runCtx)
	})
	return err
}

// Cancel stops dispatch and cancels in-flight nodes. Completed results are
// kept. Cancel is safe to call more than once and before Start.
func (engine *Engine) Cancel() {
	engine.startOnce.Do(func() {
		// Never started: block every node right away.
		engine.cancelUnstarted()
	})
	engine.cancel()
}

// Done is closed once every node is terminal.
func (engine *Engine) Done() <-chan struct{} {
	return engine.done
}

// Wait blocks until the task is done or ctx ends.
func (engine *Engine) Wait(ctx context.Context) error {
	select {
	case <-engine.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a consistent snapshot of the task.
func (engine *Engine) Status() task.Snapshot {
	return engine.execution.Snapshot()
}

// NodeStatus returns the state of one node.
func (engine *Engine) NodeStatus(nodeID string) (task.NodeState, error) {
	state, exists := engine.execution.State(nodeID)
	if !exists {
		return task.NodeState{}, fmt.Errorf("task %s has no node %q", engine.execution.ID, nodeID)
	}
	return state, nil
}

type messageKind int

const (
	slotAcquired messageKind = iota
	slotAborted
	nodeFinished
)

type message struct {
	kind     messageKind
	nodeID   string
	result   *task.Result
	err      error
	duration time.Duration
}

// scheduler is the loop goroutine's private state.
type scheduler struct {
	unmet    map[string]int
	ready    []string
	waiting  bool
	canceled bool
}

func (engine *Engine) run(ctx context.Context) {
	graph := engine.execution.Graph
	startedAt := time.Now()
	ctx, taskSpan := engine.observeTaskStart(ctx)

	state := &scheduler{unmet: make(map[string]int, graph.Len())}
	for _, nodeID := range graph.IDs() {
		state.unmet[nodeID] = len(graph.Parents(nodeID))
	}
	for _, nodeID := range graph.Roots() {
		engine.markReady(state, nodeID)
	}

	canceled := ctx.Done()
	for !engine.execution.IsDone() || state.waiting {
		if !state.canceled {
			engine.dispatch(ctx, state)
		}

		select {
		case msg := <-engine.messages:
			engine.handle(ctx, state, msg)
		case <-canceled:
			canceled = nil
			engine.handleCancel(ctx, state)
		}
	}

	engine.cancel()
	engine.observeTaskEnd(ctx, taskSpan, time.Since(startedAt))
	if engine.publisher != nil {
		engine.publisher.Finish(engine.execution.ID)
	}
	close(engine.done)
}

// dispatch starts ready nodes in ascending id order while limiter slots are
// free. When the head of the queue has to wait, one waiter goroutine queues
// on the limiter for it, which keeps dispatch order intact.
func (engine *Engine) dispatch(ctx context.Context, state *scheduler) {
	for len(state.ready) > 0 && !state.waiting {
		nodeID := state.ready[0]
		if !engine.limiter.TryAcquire() {
			state.waiting = true
			go func() {
				if err := engine.limiter.Acquire(ctx); err != nil {
					engine.messages <- message{kind: slotAborted, nodeID: nodeID, err: err}
					return
				}
				engine.messages <- message{kind: slotAcquired, nodeID: nodeID}
			}()
			return
		}
		state.ready = state.ready[1:]
		engine.startNode(ctx, state, nodeID)
	}
}

func (engine *Engine) handle(ctx context.Context, state *scheduler, msg message) {
	switch msg.kind {
	case slotAcquired:
		// A smaller id may have become ready while waiting; the slot goes
		// to whichever node now heads the queue.
		state.waiting = false
		if state.canceled || len(state.ready) == 0 {
			engine.limiter.Release()
			return
		}
		nodeID := state.ready[0]
		state.ready = state.ready[1:]
		engine.startNode(ctx, state, nodeID)

	case slotAborted:
		state.waiting = false

	case nodeFinished:
		engine.finishNode(ctx, state, msg)
	}
}

func (engine *Engine) startNode(ctx context.Context, state *scheduler, nodeID string) {
	startedAt := engine.now().UTC()
	if err := engine.transition(nodeID, task.NodeState{Status: task.StatusProcessing, StartedAt: &startedAt}); err != nil {
		engine.limiter.Release()
		engine.logError(ctx, "dispatch rejected", nodeID, err)
		return
	}

	node, _ := engine.execution.Graph.Node(nodeID)
	accumulated := engine.accumulate(node)

	go engine.runNode(ctx, node, accumulated)
}

// runNode executes one node on its own goroutine and reports back to the
// loop. The limiter slot is released before reporting so the loop can reuse
// it immediately.
func (engine *Engine) runNode(ctx context.Context, node promptgraph.PromptNode, accumulated executor.Accumulated) {
	nodeCtx := ctx
	if engine.nodeTimeout > 0 {
		var cancel context.CancelFunc
		nodeCtx, cancel = context.WithTimeout(ctx, engine.nodeTimeout)
		defer cancel()
	}
	nodeCtx, span := engine.observeNodeStart(nodeCtx, node)

	start := time.Now()
	result, err := engine.execute(nodeCtx, node, accumulated)
	duration := time.Since(start)

	engine.observeNodeEnd(nodeCtx, span, node, err, duration)
	engine.limiter.Release()
	engine.messages <- message{kind: nodeFinished, nodeID: node.ID, result: result, err: err, duration: duration}
}

func (engine *Engine) execute(ctx context.Context, node promptgraph.PromptNode, accumulated executor.Accumulated) (result *task.Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("node %s panicked: %v", node.ID, recovered)
		}
	}()
	return engine.executor.Execute(ctx, node, accumulated)
}

func (engine *Engine) finishNode(ctx context.Context, state *scheduler, msg message) {
	completedAt := engine.now().UTC()
	current, _ := engine.execution.State(msg.nodeID)

	if msg.err != nil {
		diagnostic := msg.err.Error()
		if state.canceled {
			diagnostic = fmt.Sprintf("%v: %v", ErrTaskCanceled, msg.err)
		}
		failed := task.NodeState{Status: task.StatusFailed, Error: diagnostic, StartedAt: current.StartedAt, CompletedAt: &completedAt}
		if err := engine.transition(msg.nodeID, failed); err != nil {
			engine.logError(ctx, "failure not recorded", msg.nodeID, err)
		}
		engine.blockDescendants(ctx, state, msg.nodeID, fmt.Sprintf("ancestor node %s failed", msg.nodeID))
		return
	}

	complete := task.NodeState{Status: task.StatusComplete, Result: msg.result, StartedAt: current.StartedAt, CompletedAt: &completedAt}
	if err := engine.transition(msg.nodeID, complete); err != nil {
		engine.logError(ctx, "completion not recorded", msg.nodeID, err)
		return
	}
	if state.canceled {
		return
	}

	for _, childID := range engine.execution.Graph.Children(msg.nodeID) {
		state.unmet[childID]--
		if state.unmet[childID] == 0 {
			engine.markReady(state, childID)
		}
	}
}

// handleCancel blocks every node that has not started. In-flight nodes see
// their context canceled and fail when they report back.
func (engine *Engine) handleCancel(ctx context.Context, state *scheduler) {
	state.canceled = true
	state.ready = nil

	for _, nodeID := range engine.execution.Graph.IDs() {
		current, _ := engine.execution.State(nodeID)
		if current.Status != task.StatusPending && current.Status != task.StatusReady {
			continue
		}
		if err := engine.transition(nodeID, task.NodeState{Status: task.StatusBlocked, Error: ErrTaskCanceled.Error()}); err != nil {
			engine.logError(ctx, "cancel not recorded", nodeID, err)
		}
	}
}

func (engine *Engine) cancelUnstarted() {
	for _, nodeID := range engine.execution.Graph.IDs() {
		_ = engine.transition(nodeID, task.NodeState{Status: task.StatusBlocked, Error: ErrTaskCanceled.Error()})
	}
	if engine.publisher != nil {
		engine.publisher.Finish(engine.execution.ID)
	}
	close(engine.done)
}

func (engine *Engine) markReady(state *scheduler, nodeID string) {
	if err := engine.transition(nodeID, task.NodeState{Status: task.StatusReady}); err != nil {
		return
	}
	index, _ := slices.BinarySearchFunc(state.ready, nodeID, promptgraph.CompareIDs)
	state.ready = slices.Insert(state.ready, index, nodeID)
}

// blockDescendants blocks every strict descendant of a failed node that has
// not started. A descendant cannot be processing while one of its ancestors
// was still running.
func (engine *Engine) blockDescendants(ctx context.Context, state *scheduler, failedID, diagnostic string) {
	for _, nodeID := range engine.execution.Graph.Descendants(failedID) {
		current, _ := engine.execution.State(nodeID)
		if current.Status.IsTerminal() {
			continue
		}
		if err := engine.transition(nodeID, task.NodeState{Status: task.StatusBlocked, Error: diagnostic}); err != nil {
			engine.logError(ctx, "block not recorded", nodeID, err)
			continue
		}
		state.ready = slices.DeleteFunc(state.ready, func(readyID string) bool { return readyID == nodeID })
		engine.observeBlocked(ctx, nodeID, failedID)
	}
}

func (engine *Engine) transition(nodeID string, next task.NodeState) error {
	var publish func(task.NodeState)
	if engine.publisher != nil {
		publish = func(applied task.NodeState) {
			engine.publisher.Publish(engine.execution.ID, nodeID, applied)
		}
	}
	return engine.execution.Transition(nodeID, next, publish)
}

// accumulate gathers the completed parents of node, ordered by parent id,
// and its full ancestry in topological order.
func (engine *Engine) accumulate(node promptgraph.PromptNode) executor.Accumulated {
	graph := engine.execution.Graph
	states := engine.execution.States()

	output := func(nodeID string) executor.ParentOutput {
		ancestor, _ := graph.Node(nodeID)
		return executor.ParentOutput{
			NodeID:      ancestor.ID,
			SectionName: ancestor.SectionName,
			PromptText:  ancestor.PromptText,
			IsSystem:    ancestor.IsSystem,
			Result:      states[nodeID].Result,
		}
	}

	parents := make([]executor.ParentOutput, 0, len(node.ParentIDs))
	for _, parentID := range node.ParentIDs {
		parents = append(parents, output(parentID))
	}

	ancestors := make(map[string]bool)
	for _, ancestorID := range graph.Ancestors(node.ID) {
		ancestors[ancestorID] = true
	}
	lineage := make([]executor.ParentOutput, 0, len(ancestors))
	for _, nodeID := range graph.TopologicalOrder() {
		if ancestors[nodeID] {
			lineage = append(lineage, output(nodeID))
		}
	}

	return executor.Accumulated{
		TaskID:  engine.execution.ID,
		Subject: engine.execution.Subject,
		Options: engine.execution.Options,
		Parents: parents,
		Lineage: lineage,
	}
}
