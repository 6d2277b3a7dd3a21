package websearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/luislascano01/Stratvithor/internal/utils"
	"github.com/luislascano01/Stratvithor/providers/search"
)

const (
	defaultProbeTimeout  = 15 * time.Second
	defaultProbeInterval = 5 * time.Second
	defaultProbeAttempts = 3
)

// ErrNoEndpoint is returned when no candidate passes its health check.
var ErrNoEndpoint = errors.New("no search endpoint passed its health check")

// Client posts queries to the self-hosted search service.
type Client struct {
	candidates    []string
	httpClient    *http.Client
	logger        *slog.Logger
	probeTimeout  time.Duration
	probeInterval time.Duration
	probeAttempts int
	credentials   string

	probes   singleflight.Group
	mu       sync.Mutex
	endpoint string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger sets the logger for probe failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithProbe tunes health probing: per-probe timeout, pause between rounds and
// rounds per candidate.
func WithProbe(timeout, interval time.Duration, attempts int) Option {
	return func(c *Client) {
		c.probeTimeout = timeout
		c.probeInterval = interval
		c.probeAttempts = attempts
	}
}

// WithCredentials sets the credentials path forwarded to the service.
func WithCredentials(path string) Option {
	return func(c *Client) { c.credentials = path }
}

// New creates a client for the given base URLs, tried in parallel.
func New(candidates []string, opts ...Option) *Client {
	trimmed := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate = strings.TrimRight(strings.TrimSpace(candidate), "/"); candidate != "" {
			trimmed = append(trimmed, candidate)
		}
	}

	client := &Client{
		candidates:    trimmed,
		httpClient:    http.DefaultClient,
		logger:        slog.Default(),
		probeTimeout:  defaultProbeTimeout,
		probeInterval: defaultProbeInterval,
		probeAttempts: defaultProbeAttempts,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var _ search.Searcher = (*Client)(nil)

type healthResponse struct {
	Status string `json:"status"`
}

// Resolve returns the search endpoint, probing candidates if none is cached.
// Concurrent callers share one probe round.
func (c *Client) Resolve(ctx context.Context) (string, error) {
	c.mu.Lock()
	endpoint := c.endpoint
	c.mu.Unlock()
	if endpoint != "" {
		return endpoint, nil
	}

	value, err, _ := c.probes.Do("probe", func() (any, error) {
		c.mu.Lock()
		cached := c.endpoint
		c.mu.Unlock()
		if cached != "" {
			return cached, nil
		}

		endpoint, err := c.probe(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.endpoint = endpoint
		c.mu.Unlock()
		return endpoint, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (c *Client) probe(ctx context.Context) (string, error) {
	if len(c.candidates) == 0 {
		return "", ErrNoEndpoint
	}

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan string, len(c.candidates))
	group, groupCtx := errgroup.WithContext(probeCtx)
	for _, baseURL := range c.candidates {
		group.Go(func() error {
			if c.probeCandidate(groupCtx, baseURL) {
				found <- baseURL + "/search"
				cancel()
			}
			return nil
		})
	}
	_ = group.Wait()
	close(found)

	if endpoint, ok := <-found; ok {
		return endpoint, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", ErrNoEndpoint
}

func (c *Client) probeCandidate(ctx context.Context, baseURL string) bool {
	for attempt := 0; attempt < c.probeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(c.probeInterval):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
		_, health, err := utils.DoGetSync[healthResponse](attemptCtx, c.httpClient, baseURL+"/health")
		cancel()
		if err == nil && health.Status == "ok" {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.Info("search endpoint health check failed", "url", baseURL, "attempt", attempt+1, "error", err)
	}
	return false
}

type searchRequest struct {
	Credentials      string `json:"credentials,omitempty"`
	GeneralPrompt    string `json:"general_prompt"`
	ParticularPrompt string `json:"particular_prompt"`
	MaxResults       int    `json:"max_results,omitempty"`
}

type searchResponse struct {
	Results []struct {
		Title        string `json:"title"`
		URL          string `json:"url"`
		DisplayURL   string `json:"display_url"`
		Snippet      string `json:"snippet"`
		ScrappedText string `json:"scrapped_text"`
	} `json:"results"`
}

// Search posts the query to the resolved endpoint. A transport failure
// forgets the cached endpoint so the next call probes again; the failure is
// reported as transient.
func (c *Client) Search(ctx context.Context, query search.Query) ([]search.Hit, error) {
	endpoint, err := c.Resolve(ctx)
	if err != nil {
		return nil, &unavailableError{err: err}
	}

	_, response, err := utils.DoPostSync[searchResponse](ctx, c.httpClient, endpoint, "", searchRequest{
		Credentials:      c.credentials,
		GeneralPrompt:    query.Text,
		ParticularPrompt: query.Focus,
		MaxResults:       query.MaxResults,
	})
	if err != nil {
		var statusErr *utils.StatusError
		if !errors.As(err, &statusErr) && ctx.Err() == nil {
			c.forget(endpoint)
			return nil, &unavailableError{err: err}
		}
		return nil, fmt.Errorf("web search: %w", err)
	}

	hits := make([]search.Hit, 0, len(response.Results))
	for _, result := range response.Results {
		hits = append(hits, search.Hit{
			Title:   result.Title,
			URL:     result.URL,
			Snippet: result.Snippet,
			Content: result.ScrappedText,
			Source:  "websearch",
		})
	}
	return hits, nil
}

func (c *Client) forget(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.endpoint == endpoint {
		c.endpoint = ""
	}
}

type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string   { return "web search unavailable: " + e.err.Error() }
func (e *unavailableError) Unwrap() error   { return e.err }
func (e *unavailableError) Transient() bool { return true }
