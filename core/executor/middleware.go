package executor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
)

// FetchMiddleware wraps a fetch call. Middlewares receive the next FetchFunc
// in the chain and return a FetchFunc that calls it.
type FetchMiddleware func(next FetchFunc) FetchFunc

// Chain wraps fetcher with middlewares. The first middleware is the outermost
// wrapper, i.e. the first to run on a call.
func Chain(fetcher Fetcher, middlewares ...FetchMiddleware) Fetcher {
	chain := FetchFunc(fetcher.Fetch)
	for i := len(middlewares) - 1; i >= 0; i-- {
		chain = middlewares[i](chain)
	}
	return chain
}

// WithTimeout bounds each call with its own deadline. A caller deadline that
// is shorter wins, as per normal context semantics.
func WithTimeout(timeout time.Duration) FetchMiddleware {
	return func(next FetchFunc) FetchFunc {
		return func(ctx context.Context, node promptgraph.PromptNode, accumulated Accumulated) (RawData, error) {
			if timeout <= 0 {
				return next(ctx, node, accumulated)
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, node, accumulated)
		}
	}
}

// WithRateLimit waits on limiter before each call, so bursts of ready nodes
// do not exceed a provider's request quota.
func WithRateLimit(limiter *rate.Limiter) FetchMiddleware {
	return func(next FetchFunc) FetchFunc {
		return func(ctx context.Context, node promptgraph.PromptNode, accumulated Accumulated) (RawData, error) {
			if err := limiter.Wait(ctx); err != nil {
				return RawData{}, err
			}
			return next(ctx, node, accumulated)
		}
	}
}

// WithLogging logs every fetch call and its outcome.
func WithLogging(logger *slog.Logger) FetchMiddleware {
	return func(next FetchFunc) FetchFunc {
		return func(ctx context.Context, node promptgraph.PromptNode, accumulated Accumulated) (RawData, error) {
			logger.DebugContext(ctx, "fetch",
				slog.String("task_id", accumulated.TaskID),
				slog.String("node_id", node.ID),
				slog.Bool("web_search", accumulated.Options.WebSearch),
			)

			start := time.Now()
			raw, err := next(ctx, node, accumulated)
			elapsed := time.Since(start)

			if err != nil {
				logger.WarnContext(ctx, "fetch failed",
					slog.String("task_id", accumulated.TaskID),
					slog.String("node_id", node.ID),
					slog.Duration("duration", elapsed),
					slog.String("error", err.Error()),
				)
				return raw, err
			}

			logger.DebugContext(ctx, "fetch completed",
				slog.String("task_id", accumulated.TaskID),
				slog.String("node_id", node.ID),
				slog.Duration("duration", elapsed),
				slog.Int("hits", len(raw.Hits)),
			)
			return raw, nil
		}
	}
}
