package engine

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luislascano01/Stratvithor/core/executor"
	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/task"
)

type executorFunc func(ctx context.Context, node promptgraph.PromptNode, accumulated executor.Accumulated) (*task.Result, error)

func (fn executorFunc) Execute(ctx context.Context, node promptgraph.PromptNode, accumulated executor.Accumulated) (*task.Result, error) {
	return fn(ctx, node, accumulated)
}

func succeed(_ context.Context, node promptgraph.PromptNode, _ executor.Accumulated) (*task.Result, error) {
	return &task.Result{Title: "Section " + node.ID, Text: "text " + node.ID}, nil
}

type publishedEvent struct {
	nodeID string
	status task.NodeStatus
}

type recordingPublisher struct {
	mutex    sync.Mutex
	events   []publishedEvent
	finished int
}

func (publisher *recordingPublisher) Publish(_ string, nodeID string, state task.NodeState) {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	publisher.events = append(publisher.events, publishedEvent{nodeID: nodeID, status: state.Status})
}

func (publisher *recordingPublisher) Finish(string) {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	publisher.finished++
}

func (publisher *recordingPublisher) indexOf(nodeID string, status task.NodeStatus) int {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	return slices.Index(publisher.events, publishedEvent{nodeID: nodeID, status: status})
}

func newExecution(t *testing.T, ids []string, chains []string) *task.TaskExecution {
	t.Helper()
	definitions := make([]promptgraph.NodeDefinition, 0, len(ids))
	for _, id := range ids {
		definitions = append(definitions, promptgraph.NodeDefinition{ID: id, SectionName: "Section " + id, PromptText: "Prompt " + id})
	}
	graph, err := promptgraph.Load(definitions, chains)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return task.New(task.NewTaskID(), "test", graph, "ACME", task.Options{})
}

func runToCompletion(t *testing.T, engine *Engine) {
	t.Helper()
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := engine.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func statuses(execution *task.TaskExecution) map[string]task.NodeStatus {
	result := make(map[string]task.NodeStatus)
	for nodeID, state := range execution.States() {
		result[nodeID] = state.Status
	}
	return result
}

func assertStatuses(t *testing.T, execution *task.TaskExecution, want map[string]task.NodeStatus) {
	t.Helper()
	got := statuses(execution)
	for nodeID, status := range want {
		if got[nodeID] != status {
			t.Errorf("node %s status = %s, want %s", nodeID, got[nodeID], status)
		}
	}
}

func TestEngine_AllComplete(t *testing.T) {
	execution := newExecution(t, []string{"0", "1", "2", "3"}, []string{"0->1->3", "0->2->3"})
	publisher := &recordingPublisher{}
	engine := New(execution, executorFunc(succeed), WithPublisher(publisher))

	runToCompletion(t, engine)

	assertStatuses(t, execution, map[string]task.NodeStatus{
		"0": task.StatusComplete, "1": task.StatusComplete, "2": task.StatusComplete, "3": task.StatusComplete,
	})
	state, err := engine.NodeStatus("3")
	if err != nil {
		t.Fatalf("NodeStatus() error = %v", err)
	}
	if state.Result == nil || state.Result.Title != "Section 3" || state.StartedAt == nil || state.CompletedAt == nil {
		t.Errorf("node 3 state = %+v", state)
	}
	if !engine.Status().Done {
		t.Error("Status().Done = false")
	}
	if publisher.finished != 1 {
		t.Errorf("Finish called %d times, want 1", publisher.finished)
	}
}

func TestEngine_FailureBlocksDescendants(t *testing.T) {
	execution := newExecution(t,
		[]string{"0", "1", "2", "3", "4", "5"},
		[]string{"0->1->2", "2->3", "2->4", "3->5", "4->5"},
	)
	var executed sync.Map
	nodeExecutor := executorFunc(func(ctx context.Context, node promptgraph.PromptNode, accumulated executor.Accumulated) (*task.Result, error) {
		executed.Store(node.ID, true)
		if node.ID == "2" {
			return nil, errors.New("search provider unavailable")
		}
		return succeed(ctx, node, accumulated)
	})

	runToCompletion(t, New(execution, nodeExecutor))

	assertStatuses(t, execution, map[string]task.NodeStatus{
		"0": task.StatusComplete,
		"1": task.StatusComplete,
		"2": task.StatusFailed,
		"3": task.StatusBlocked,
		"4": task.StatusBlocked,
		"5": task.StatusBlocked,
	})
	for _, nodeID := range []string{"3", "4", "5"} {
		if _, ran := executed.Load(nodeID); ran {
			t.Errorf("blocked node %s was executed", nodeID)
		}
	}
	failed, _ := execution.State("2")
	if !strings.Contains(failed.Error, "search provider unavailable") {
		t.Errorf("failed node error = %q", failed.Error)
	}
}

func TestEngine_FailureDoesNotStopSiblings(t *testing.T) {
	execution := newExecution(t, []string{"0", "1", "2", "3"}, []string{"0->1->3", "0->2"})
	nodeExecutor := executorFunc(func(ctx context.Context, node promptgraph.PromptNode, accumulated executor.Accumulated) (*task.Result, error) {
		if node.ID == "1" {
			return nil, errors.New("boom")
		}
		return succeed(ctx, node, accumulated)
	})

	runToCompletion(t, New(execution, nodeExecutor))

	assertStatuses(t, execution, map[string]task.NodeStatus{
		"0": task.StatusComplete, "1": task.StatusFailed, "2": task.StatusComplete, "3": task.StatusBlocked,
	})
}

func TestEngine_ParentCompletesBeforeChildStarts(t *testing.T) {
	chains := []string{"0->1->2", "2->3", "2->4", "3->5", "4->5", "0->6"}
	execution := newExecution(t, []string{"0", "1", "2", "3", "4", "5", "6"}, chains)
	publisher := &recordingPublisher{}

	runToCompletion(t, New(execution, executorFunc(succeed), WithPublisher(publisher), WithMaxConcurrency(3)))

	for _, edge := range execution.Graph.Edges() {
		parentDone := publisher.indexOf(edge.From, task.StatusComplete)
		childReady := publisher.indexOf(edge.To, task.StatusReady)
		childStarted := publisher.indexOf(edge.To, task.StatusProcessing)
		if parentDone < 0 || childStarted < 0 || childReady < parentDone || childStarted < parentDone {
			t.Errorf("edge %s->%s: parent complete at %d, child ready at %d, processing at %d",
				edge.From, edge.To, parentDone, childReady, childStarted)
		}
	}
}

func TestEngine_AccumulatedContext(t *testing.T) {
	execution := newExecution(t, []string{"0", "1", "2", "10"}, []string{"0->2->10", "1->10"})
	var got executor.Accumulated
	nodeExecutor := executorFunc(func(ctx context.Context, node promptgraph.PromptNode, accumulated executor.Accumulated) (*task.Result, error) {
		if node.ID == "10" {
			got = accumulated
		}
		return succeed(ctx, node, accumulated)
	})

	runToCompletion(t, New(execution, nodeExecutor))

	parentIDs := make([]string, 0)
	for _, parent := range got.Parents {
		parentIDs = append(parentIDs, parent.NodeID)
		if parent.Result == nil || parent.Result.Text != "text "+parent.NodeID {
			t.Errorf("parent %s result = %+v", parent.NodeID, parent.Result)
		}
	}
	if !slices.Equal(parentIDs, []string{"1", "2"}) {
		t.Errorf("parents = %v, want [1 2]", parentIDs)
	}

	lineageIDs := make([]string, 0)
	for _, ancestor := range got.Lineage {
		lineageIDs = append(lineageIDs, ancestor.NodeID)
	}
	if !slices.Equal(lineageIDs, []string{"0", "1", "2"}) {
		t.Errorf("lineage = %v, want [0 1 2]", lineageIDs)
	}
	if got.Subject != "ACME" || got.TaskID != execution.ID {
		t.Errorf("accumulated = %+v", got)
	}
}

func TestEngine_DispatchesReadySiblingsInIDOrder(t *testing.T) {
	execution := newExecution(t, []string{"10", "2", "1", "b", "a"}, nil)
	var mutex sync.Mutex
	var order []string
	nodeExecutor := executorFunc(func(ctx context.Context, node promptgraph.PromptNode, accumulated executor.Accumulated) (*task.Result, error) {
		mutex.Lock()
		order = append(order, node.ID)
		mutex.Unlock()
		return succeed(ctx, node, accumulated)
	})

	runToCompletion(t, New(execution, nodeExecutor, WithMaxConcurrency(1)))

	if want := []string{"1", "2", "10", "a", "b"}; !slices.Equal(order, want) {
		t.Errorf("dispatch order = %v, want %v", order, want)
	}
}

// concurrencyProbe records the highest number of simultaneous executions.
type concurrencyProbe struct {
	current atomic.Int32
	peak    atomic.Int32
}

func (probe *concurrencyProbe) Execute(ctx context.Context, node promptgraph.PromptNode, accumulated executor.Accumulated) (*task.Result, error) {
	running := probe.current.Add(1)
	defer probe.current.Add(-1)
	for {
		peak := probe.peak.Load()
		if running <= peak || probe.peak.CompareAndSwap(peak, running) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return succeed(ctx, node, accumulated)
}

func TestEngine_ConcurrencyBound(t *testing.T) {
	ids := []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}
	execution := newExecution(t, ids, nil)
	probe := &concurrencyProbe{}

	runToCompletion(t, New(execution, probe, WithMaxConcurrency(3)))

	if peak := probe.peak.Load(); peak > 3 || peak < 1 {
		t.Errorf("peak concurrency = %d, want 1..3", peak)
	}
	for nodeID, status := range statuses(execution) {
		if status != task.StatusComplete {
			t.Errorf("node %s status = %s", nodeID, status)
		}
	}
}

func TestEngine_SharedLimiterBoundsAllTasks(t *testing.T) {
	limiter := NewLimiter(2)
	probe := &concurrencyProbe{}
	ids := []string{"0", "1", "2", "3", "4", "5"}

	engines := []*Engine{
		New(newExecution(t, ids, nil), probe, WithLimiter(limiter)),
		New(newExecution(t, ids, nil), probe, WithLimiter(limiter)),
		New(newExecution(t, ids, nil), probe, WithLimiter(limiter)),
	}
	for _, engine := range engines {
		if err := engine.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, engine := range engines {
		if err := engine.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}

	if peak := probe.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency across tasks = %d, want <= 2", peak)
	}
}

func TestEngine_Cancel(t *testing.T) {
	execution := newExecution(t, []string{"0", "1", "2", "3"}, []string{"0->1->2", "0->3"})
	started := make(chan struct{})
	nodeExecutor := executorFunc(func(ctx context.Context, node promptgraph.PromptNode, accumulated executor.Accumulated) (*task.Result, error) {
		if node.ID == "0" {
			return succeed(ctx, node, accumulated)
		}
		if node.ID == "1" {
			close(started)
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	engine := New(execution, nodeExecutor, WithMaxConcurrency(1))

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-started
	engine.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := engine.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	assertStatuses(t, execution, map[string]task.NodeStatus{
		"0": task.StatusComplete,
		"1": task.StatusFailed,
		"2": task.StatusBlocked,
		"3": task.StatusBlocked,
	})
	for _, nodeID := range []string{"1", "2", "3"} {
		state, _ := execution.State(nodeID)
		if !strings.Contains(state.Error, ErrTaskCanceled.Error()) {
			t.Errorf("node %s error = %q, want cancellation diagnostic", nodeID, state.Error)
		}
	}
	complete, _ := execution.State("0")
	if complete.Result == nil {
		t.Error("completed result lost on cancel")
	}
	engine.Cancel()
}

func TestEngine_CancelBeforeStart(t *testing.T) {
	execution := newExecution(t, []string{"0", "1"}, []string{"0->1"})
	engine := New(execution, executorFunc(succeed))

	engine.Cancel()

	select {
	case <-engine.Done():
	default:
		t.Fatal("Done() not closed after Cancel")
	}
	assertStatuses(t, execution, map[string]task.NodeStatus{"0": task.StatusBlocked, "1": task.StatusBlocked})
	if err := engine.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() after Cancel error = %v, want ErrAlreadyStarted", err)
	}
}

func TestEngine_StartTwice(t *testing.T) {
	engine := New(newExecution(t, []string{"0"}, nil), executorFunc(succeed))
	runToCompletion(t, engine)
	if err := engine.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestEngine_NodeTimeout(t *testing.T) {
	execution := newExecution(t, []string{"0", "1"}, []string{"0->1"})
	nodeExecutor := executorFunc(func(ctx context.Context, node promptgraph.PromptNode, _ executor.Accumulated) (*task.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	runToCompletion(t, New(execution, nodeExecutor, WithNodeTimeout(10*time.Millisecond)))

	assertStatuses(t, execution, map[string]task.NodeStatus{"0": task.StatusFailed, "1": task.StatusBlocked})
}

func TestEngine_PanicFailsNode(t *testing.T) {
	execution := newExecution(t, []string{"0"}, nil)
	nodeExecutor := executorFunc(func(context.Context, promptgraph.PromptNode, executor.Accumulated) (*task.Result, error) {
		panic("unexpected")
	})

	runToCompletion(t, New(execution, nodeExecutor))

	state, _ := execution.State("0")
	if state.Status != task.StatusFailed || !strings.Contains(state.Error, "panicked") {
		t.Errorf("state = %+v", state)
	}
}

func TestEngine_MockExecutor(t *testing.T) {
	definitions := []promptgraph.NodeDefinition{
		{ID: "0", SectionName: "Persona", PromptText: "You are an analyst.", IsSystem: true},
		{ID: "1", SectionName: "Overview", PromptText: "Describe the company."},
	}
	graph, err := promptgraph.Load(definitions, []string{"0->1"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	execution := task.New(task.NewTaskID(), "test", graph, "ACME", task.Options{Mock: true})

	runToCompletion(t, New(execution, executor.NewMock(0)))

	system, _ := execution.State("0")
	if system.Result == nil || system.Result.Text != executor.SystemNodeText {
		t.Errorf("system node result = %+v", system.Result)
	}
	overview, _ := execution.State("1")
	if overview.Status != task.StatusComplete || overview.Result.Title != "Overview" {
		t.Errorf("overview state = %+v", overview)
	}
}
