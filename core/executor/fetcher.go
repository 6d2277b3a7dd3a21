package executor

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/providers/search"
	"github.com/luislascano01/Stratvithor/providers/search/polygon"
)

// PlaceholderHit stands in for search results when a task runs without web
// search.
var PlaceholderHit = search.Hit{Title: "place_holder", Snippet: "mock_data", Source: "placeholder"}

// SearchFetcher queries a Searcher with the node's prompt, focused on the
// task subject. Tasks with web search disabled get placeholder data instead.
type SearchFetcher struct {
	searcher   search.Searcher
	maxResults int
}

// NewSearchFetcher creates a fetcher over searcher.
func NewSearchFetcher(searcher search.Searcher, maxResults int) *SearchFetcher {
	return &SearchFetcher{searcher: searcher, maxResults: maxResults}
}

// Fetch implements Fetcher. Transient search failures are marked with
// TransientFetchError so WithRetry picks them up.
func (f *SearchFetcher) Fetch(ctx context.Context, node promptgraph.PromptNode, accumulated Accumulated) (RawData, error) {
	query := search.Query{
		Text:       strings.TrimSpace(node.PromptText),
		Focus:      accumulated.Subject,
		MaxResults: f.maxResults,
	}

	if !accumulated.Options.WebSearch || f.searcher == nil {
		return RawData{Query: query, Hits: []search.Hit{PlaceholderHit}, Placeholder: true}, nil
	}

	hits, err := f.searcher.Search(ctx, query)
	if err != nil {
		if search.IsTransient(err) {
			return RawData{}, &TransientFetchError{Err: err}
		}
		return RawData{}, err
	}
	return RawData{Query: query, Hits: hits}, nil
}

// FinancialSource looks up a company's market data.
type FinancialSource interface {
	Lookup(ctx context.Context, company string) (*polygon.Profile, error)
}

// DefaultFinancialTTL is how long a subject's market data is reused.
const DefaultFinancialTTL = 15 * time.Minute

// FinancialOption configures WithFinancialContext.
type FinancialOption func(*financialCache)

// WithFinancialTTL sets how long a fetched profile is reused before the
// subject is looked up again. Non-positive values keep the default.
func WithFinancialTTL(ttl time.Duration) FinancialOption {
	return func(c *financialCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFinancialClock overrides the cache's time source.
func WithFinancialClock(now func() time.Time) FinancialOption {
	return func(c *financialCache) { c.now = now }
}

// WithFinancialContext attaches the subject's market data to the raw data of
// tasks that asked for it. Lookups are made once per subject, shared by
// concurrent nodes, and reused until they are older than the TTL; a failed
// lookup is logged and the node proceeds without financial data.
func WithFinancialContext(source FinancialSource, logger *slog.Logger, opts ...FinancialOption) FetchMiddleware {
	cache := &financialCache{
		source:   source,
		logger:   logger,
		ttl:      DefaultFinancialTTL,
		now:      time.Now,
		profiles: make(map[string]financialEntry),
	}
	for _, opt := range opts {
		opt(cache)
	}

	return func(next FetchFunc) FetchFunc {
		return func(ctx context.Context, node promptgraph.PromptNode, accumulated Accumulated) (RawData, error) {
			raw, err := next(ctx, node, accumulated)
			if err != nil || !accumulated.Options.FinancialContext {
				return raw, err
			}
			raw.Financial = cache.lookup(ctx, accumulated.Subject)
			return raw, nil
		}
	}
}

type financialEntry struct {
	profile   *polygon.Profile
	fetchedAt time.Time
}

type financialCache struct {
	source FinancialSource
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu       sync.RWMutex
	profiles map[string]financialEntry
}

func (c *financialCache) cached(key string) (*polygon.Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.profiles[key]
	if !exists || c.now().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.profile, true
}

func (c *financialCache) lookup(ctx context.Context, subject string) *polygon.Profile {
	key := strings.ToLower(strings.TrimSpace(subject))
	if profile, ok := c.cached(key); ok {
		return profile
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		if profile, ok := c.cached(key); ok {
			return profile, nil
		}
		profile, err := c.source.Lookup(ctx, subject)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.profiles[key] = financialEntry{profile: profile, fetchedAt: c.now()}
		c.mu.Unlock()
		return profile, nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "financial context unavailable", "subject", subject, "error", err)
		return nil
	}
	return value.(*polygon.Profile)
}
