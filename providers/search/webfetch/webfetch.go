package webfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/luislascano01/Stratvithor/internal/utils"
	"github.com/luislascano01/Stratvithor/providers/search"
)

const (
	// DefaultTimeout bounds one page fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent with every page request.
	DefaultUserAgent = "stratvithor-webfetch/1.0"

	// MaxBodySize caps the HTML read per page.
	MaxBodySize = 10 * 1024 * 1024

	// DefaultMaxPages is how many hits per query are enriched.
	DefaultMaxPages = 3

	// DefaultMaxContentLength caps the Markdown kept per hit.
	DefaultMaxContentLength = 8000
)

// Enricher fills Hit.Content for the first hits of each result set.
type Enricher struct {
	next             search.Searcher
	httpClient       *http.Client
	logger           *slog.Logger
	maxPages         int
	maxContentLength int
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithHTTPClient sets the client pages are fetched with.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(e *Enricher) { e.httpClient = httpClient }
}

// WithLogger sets the logger for page fetch failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) { e.logger = logger }
}

// WithMaxPages sets how many hits per query are enriched.
func WithMaxPages(maxPages int) Option {
	return func(e *Enricher) { e.maxPages = maxPages }
}

// WithMaxContentLength caps the Markdown kept per hit.
func WithMaxContentLength(maxLength int) Option {
	return func(e *Enricher) { e.maxContentLength = maxLength }
}

// New wraps next.
func New(next search.Searcher, opts ...Option) *Enricher {
	enricher := &Enricher{
		next:             next,
		httpClient:       newHTTPClient(),
		logger:           slog.Default(),
		maxPages:         DefaultMaxPages,
		maxContentLength: DefaultMaxContentLength,
	}
	for _, opt := range opts {
		opt(enricher)
	}
	return enricher
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   10,
			ForceAttemptHTTP2:     true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects (>10)")
			}
			return nil
		},
	}
}

var _ search.Searcher = (*Enricher)(nil)

// Search runs the wrapped search, then fetches pages for hits without
// content. A page that cannot be fetched leaves its hit unchanged.
func (e *Enricher) Search(ctx context.Context, query search.Query) ([]search.Hit, error) {
	hits, err := e.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	for i := range hits {
		if i >= e.maxPages {
			break
		}
		if hits[i].Content != "" || hits[i].URL == "" {
			continue
		}
		wg.Add(1)
		go func(hit *search.Hit) {
			defer wg.Done()
			markdown, err := e.FetchMarkdown(ctx, hit.URL)
			if err != nil {
				e.logger.Debug("page enrichment failed", "url", hit.URL, "error", err)
				return
			}
			hit.Content = utils.TruncateString(markdown, e.maxContentLength)
		}(&hits[i])
	}
	wg.Wait()

	return hits, nil
}

// FetchMarkdown downloads a page and converts its HTML to Markdown.
func (e *Enricher) FetchMarkdown(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("User-Agent", DefaultUserAgent)

	response, err := e.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer utils.CloseWithLog(response.Body)

	if response.StatusCode != http.StatusOK {
		return "", &utils.StatusError{StatusCode: response.StatusCode, URL: url}
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(response.Body, MaxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	markdown, err := htmltomarkdown.ConvertString(string(htmlBytes))
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}
