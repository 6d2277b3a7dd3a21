package executor

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/observability"
)

// Executor runs a node through fetch and mold.
type Executor struct {
	fetcher     Fetcher
	molder      Molder
	moldTimeout time.Duration
	validate    *validator.Validate
}

// Option configures an Executor.
type Option func(*Executor)

// WithMoldTimeout bounds each mold call.
func WithMoldTimeout(timeout time.Duration) Option {
	return func(e *Executor) { e.moldTimeout = timeout }
}

// New creates an executor. The fetcher is used as given; wrap it with Chain
// to add retries and timeouts.
func New(fetcher Fetcher, molder Molder, opts ...Option) *Executor {
	executor := &Executor{
		fetcher:  fetcher,
		molder:   molder,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(executor)
	}
	return executor
}

// NewMock creates an executor over the mock stubs.
func NewMock(latency time.Duration) *Executor {
	return New(MockFetcher{Latency: latency / 2}, MockMolder{Latency: latency / 2})
}

// Execute produces the node's result. System nodes complete immediately with
// SystemNodeText. Failures come back as *NodeExecutionError naming the
// stage; a result failing the section schema fails the validate stage.
func (e *Executor) Execute(ctx context.Context, node promptgraph.PromptNode, accumulated Accumulated) (*task.Result, error) {
	if node.IsSystem {
		return &task.Result{Title: sectionTitle(node), Text: SystemNodeText}, nil
	}

	fetchCtx, fetchSpan := startStage(ctx, observability.SpanFetch, node)
	raw, err := e.fetcher.Fetch(fetchCtx, node, accumulated)
	endStage(fetchSpan, err)
	if err != nil {
		return nil, &NodeExecutionError{NodeID: node.ID, Stage: StageFetch, Err: err}
	}

	moldCtx := ctx
	if e.moldTimeout > 0 {
		var cancel context.CancelFunc
		moldCtx, cancel = context.WithTimeout(ctx, e.moldTimeout)
		defer cancel()
	}
	moldCtx, moldSpan := startStage(moldCtx, observability.SpanMold, node)
	result, err := e.molder.Mold(moldCtx, node, raw, accumulated)
	endStage(moldSpan, err)
	if err != nil {
		return nil, &NodeExecutionError{NodeID: node.ID, Stage: StageMold, Err: err}
	}

	if err := e.Validate(result); err != nil {
		return nil, &NodeExecutionError{NodeID: node.ID, Stage: StageValidate, Err: err}
	}
	return result, nil
}

// Validate checks a result against the section schema: a title is required
// and every reference needs a title or a well-formed URL.
func (e *Executor) Validate(result *task.Result) error {
	if result == nil {
		return &ValidationError{Err: errNilResult}
	}
	if err := e.validate.Struct(result); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

func startStage(ctx context.Context, name string, node promptgraph.PromptNode) (context.Context, observability.Span) {
	observer := observability.ObserverFromContext(ctx)
	if observer == nil {
		return ctx, nil
	}
	return observer.StartSpan(ctx, name, observability.NodeID(node.ID))
}

func endStage(span observability.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(observability.StatusError, err.Error())
	} else {
		span.SetStatus(observability.StatusOK, "")
	}
	span.End()
}
