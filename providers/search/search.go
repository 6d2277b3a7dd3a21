package search

import (
	"context"
	"errors"
	"net"
)

// Query is one lookup. Text is the node's prompt; Focus is the report subject
// the prompt is about.
type Query struct {
	Text       string
	Focus      string
	MaxResults int
}

// String joins focus and text the way hosted search APIs expect a query.
func (q Query) String() string {
	if q.Focus == "" {
		return q.Text
	}
	if q.Text == "" {
		return q.Focus
	}
	return q.Focus + ": " + q.Text
}

// Hit is one search result.
type Hit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet,omitempty"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
	Source  string  `json:"source,omitempty"`
}

// Searcher is implemented by every context provider.
type Searcher interface {
	Search(ctx context.Context, query Query) ([]Hit, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query Query) ([]Hit, error)

// Search calls the function.
func (fn SearcherFunc) Search(ctx context.Context, query Query) ([]Hit, error) {
	return fn(ctx, query)
}

// IsTransient reports whether retrying a failed lookup may succeed: errors
// that say so through a Transient() method (HTTP 429 and 5xx), and network
// timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transient interface{ Transient() bool }
	if errors.As(err, &transient) {
		return transient.Transient()
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
