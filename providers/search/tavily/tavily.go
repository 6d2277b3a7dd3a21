package tavily

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/luislascano01/Stratvithor/internal/utils"
	"github.com/luislascano01/Stratvithor/providers/search"
)

const (
	envAPIKey = "TAVILY_API_KEY"

	defaultBaseURL    = "https://api.tavily.com"
	defaultMaxResults = 5
)

// Client calls the Tavily search endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	depth      string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) { c.apiKey = apiKey }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithAdvancedDepth requests Tavily's slower, more thorough search.
func WithAdvancedDepth() Option {
	return func(c *Client) { c.depth = "advanced" }
}

// New creates a Tavily client.
func New(opts ...Option) *Client {
	client := &Client{
		apiKey:     os.Getenv(envAPIKey),
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		depth:      "basic",
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var _ search.Searcher = (*Client)(nil)

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type searchResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title      string  `json:"title"`
		URL        string  `json:"url"`
		Content    string  `json:"content"`
		RawContent string  `json:"raw_content"`
		Score      float64 `json:"score"`
	} `json:"results"`
}

// Search runs one query. Non-2xx answers come back as *utils.StatusError, so
// 429 and 5xx are recognized by search.IsTransient.
func (c *Client) Search(ctx context.Context, query search.Query) ([]search.Hit, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", envAPIKey)
	}

	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	_, response, err := utils.DoPostSync[searchResponse](ctx, c.httpClient, c.baseURL+"/search", "", searchRequest{
		APIKey:      c.apiKey,
		Query:       query.String(),
		SearchDepth: c.depth,
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}

	hits := make([]search.Hit, 0, len(response.Results))
	for _, result := range response.Results {
		hits = append(hits, search.Hit{
			Title:   result.Title,
			URL:     result.URL,
			Snippet: result.Content,
			Content: result.RawContent,
			Score:   result.Score,
			Source:  "tavily",
		})
	}
	return hits, nil
}
