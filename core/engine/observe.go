package engine

import (
	"context"
	"time"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/internal/utils"
	"github.com/luislascano01/Stratvithor/providers/observability"
)

// observeTaskStart opens the task span and attaches the observer to ctx so
// the executor stages below it report through the same provider.
func (engine *Engine) observeTaskStart(ctx context.Context) (context.Context, observability.Span) {
	if engine.observer == nil {
		return ctx, nil
	}

	ctx = observability.ContextWithObserver(ctx, engine.observer)
	ctx, span := engine.observer.StartSpan(ctx, observability.SpanTaskRun,
		observability.TaskID(engine.execution.ID),
		observability.DefinitionID(engine.execution.DefinitionID),
		observability.Int(observability.AttrNodeCount, engine.execution.Graph.Len()),
	)
	ctx = observability.ContextWithSpan(ctx, span)

	engine.observer.Info(ctx, "task started",
		observability.TaskID(engine.execution.ID),
		observability.Int(observability.AttrNodeCount, engine.execution.Graph.Len()),
		observability.Bool("task.mock", engine.execution.Options.Mock),
	)
	return ctx, span
}

func (engine *Engine) observeTaskEnd(ctx context.Context, span observability.Span, duration time.Duration) {
	if engine.observer == nil {
		return
	}

	counts := make(map[task.NodeStatus]int)
	for _, state := range engine.execution.States() {
		counts[state.Status]++
	}
	status := "completed"
	if counts[task.StatusComplete] != engine.execution.Graph.Len() {
		status = "partial"
	}

	engine.observer.Histogram(observability.MetricTaskDuration).Record(ctx, duration.Seconds(),
		observability.String(observability.AttrStatus, status),
	)
	engine.observer.Info(ctx, "task finished",
		observability.TaskID(engine.execution.ID),
		observability.String(observability.AttrStatus, status),
		observability.Int("task.nodes.complete", counts[task.StatusComplete]),
		observability.Int("task.nodes.failed", counts[task.StatusFailed]),
		observability.Int("task.nodes.blocked", counts[task.StatusBlocked]),
		observability.Duration(observability.AttrDuration, duration),
	)

	if span != nil {
		span.SetAttributes(observability.String(observability.AttrStatus, status))
		span.SetStatus(observability.StatusOK, "task "+status)
		span.End()
	}
}

func (engine *Engine) observeNodeStart(ctx context.Context, node promptgraph.PromptNode) (context.Context, observability.Span) {
	if engine.observer == nil {
		return ctx, nil
	}

	ctx, span := engine.observer.StartSpan(ctx, observability.SpanNodeExecute,
		observability.TaskID(engine.execution.ID),
		observability.NodeID(node.ID),
		observability.NodeSection(node.SectionName),
	)
	ctx = observability.ContextWithSpan(ctx, span)

	engine.observer.Debug(ctx, "node started",
		observability.TaskID(engine.execution.ID),
		observability.NodeID(node.ID),
	)
	return ctx, span
}

func (engine *Engine) observeNodeEnd(ctx context.Context, span observability.Span, node promptgraph.PromptNode, err error, duration time.Duration) {
	if engine.observer == nil {
		return
	}

	status := task.StatusComplete
	if err != nil {
		status = task.StatusFailed
	}

	engine.observer.Histogram(observability.MetricNodeDuration).Record(ctx, duration.Seconds(),
		observability.NodeStatus(status),
	)
	engine.observer.Counter(observability.MetricNodeCount).Add(ctx, 1,
		observability.NodeStatus(status),
	)

	if err != nil {
		engine.observer.Warn(ctx, "node failed",
			observability.TaskID(engine.execution.ID),
			observability.NodeID(node.ID),
			observability.Duration(observability.AttrDuration, duration),
			observability.Error(err),
		)
	} else {
		engine.observer.Info(ctx, "node completed",
			observability.TaskID(engine.execution.ID),
			observability.NodeID(node.ID),
			observability.Duration(observability.AttrDuration, duration),
		)
	}

	if span == nil {
		return
	}
	span.SetAttributes(
		observability.NodeStatus(status),
		observability.Duration(observability.AttrDuration, duration),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(observability.StatusError, utils.TruncateStringDefault(err.Error()))
	} else {
		span.SetStatus(observability.StatusOK, "node completed")
	}
	span.End()
}

func (engine *Engine) observeBlocked(ctx context.Context, nodeID, failedID string) {
	if engine.observer == nil {
		return
	}

	engine.observer.Counter(observability.MetricNodeCount).Add(ctx, 1,
		observability.NodeStatus(task.StatusBlocked),
	)
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventNodeBlocked,
			observability.NodeID(nodeID),
			observability.String("node.blocked_by", failedID),
		)
	}
}

func (engine *Engine) logError(ctx context.Context, msg, nodeID string, err error) {
	if engine.observer == nil {
		return
	}
	engine.observer.Error(ctx, msg,
		observability.TaskID(engine.execution.ID),
		observability.NodeID(nodeID),
		observability.Error(err),
	)
}
