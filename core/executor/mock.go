package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/search"
)

// MockFetcher returns a fixed hit per node after an optional delay.
type MockFetcher struct {
	Latency time.Duration
}

// Fetch implements Fetcher.
func (f MockFetcher) Fetch(ctx context.Context, node promptgraph.PromptNode, accumulated Accumulated) (RawData, error) {
	if err := wait(ctx, f.Latency); err != nil {
		return RawData{}, err
	}
	return RawData{
		Query: search.Query{Text: node.PromptText, Focus: accumulated.Subject},
		Hits: []search.Hit{{
			Title:   "Mock source for " + sectionTitle(node),
			URL:     "https://example.com/mock/" + node.ID,
			Snippet: "some_online_data",
			Source:  "mock",
		}},
	}, nil
}

// MockMolder returns a deterministic section built from the node and the
// number of parents it was given.
type MockMolder struct {
	Latency time.Duration
}

// Mold implements Molder.
func (m MockMolder) Mold(ctx context.Context, node promptgraph.PromptNode, raw RawData, accumulated Accumulated) (*task.Result, error) {
	if err := wait(ctx, m.Latency); err != nil {
		return nil, err
	}

	references := make([]task.Reference, 0, len(raw.Hits))
	for _, hit := range raw.Hits {
		if hit.URL != "" {
			references = append(references, task.Reference{Title: hit.Title, URL: hit.URL, Snippet: hit.Snippet})
		}
	}

	return &task.Result{
		Title:      sectionTitle(node),
		Text:       fmt.Sprintf("Some llm response for %s (node %s, %d parents)", accumulated.Subject, node.ID, len(accumulated.Parents)),
		References: references,
	}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return sleepContext(ctx, d)
}
