// Package polygon looks up a company's ticker and latest daily bar on the
// Polygon.io REST API. The result feeds the optional financial context of a
// report.
package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/luislascano01/Stratvithor/internal/utils"
)

const (
	envAPIKey      = "POLYGON_API_KEY"
	defaultBaseURL = "https://api.polygon.io"
)

// ErrTickerNotFound is returned when no ticker matches the company name.
var ErrTickerNotFound = errors.New("no ticker found")

// Bar is one aggregate bar.
type Bar struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	Time   int64   `json:"t"`
}

// Profile is the financial context of one company.
type Profile struct {
	Ticker        string `json:"ticker"`
	Name          string `json:"name"`
	Market        string `json:"market"`
	Exchange      string `json:"primary_exchange,omitempty"`
	Currency      string `json:"currency_name,omitempty"`
	PreviousClose *Bar   `json:"previous_close,omitempty"`
}

// Client calls Polygon.io.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
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

// New creates a client; the key defaults to POLYGON_API_KEY.
func New(opts ...Option) *Client {
	client := &Client{
		apiKey:     os.Getenv(envAPIKey),
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type tickersResponse struct {
	Results []struct {
		Ticker          string `json:"ticker"`
		Name            string `json:"name"`
		Market          string `json:"market"`
		PrimaryExchange string `json:"primary_exchange"`
		CurrencyName    string `json:"currency_name"`
	} `json:"results"`
}

type aggregatesResponse struct {
	Results []Bar `json:"results"`
}

// Lookup finds the best ticker for company and its previous daily bar. A
// missing bar is not an error.
func (c *Client) Lookup(ctx context.Context, company string) (*Profile, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", envAPIKey)
	}

	query := url.Values{}
	query.Set("search", company)
	query.Set("active", "true")
	query.Set("limit", "5")
	query.Set("apiKey", c.apiKey)

	_, tickers, err := utils.DoGetSync[tickersResponse](ctx, c.httpClient, c.baseURL+"/v3/reference/tickers?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("polygon ticker search: %w", err)
	}
	if len(tickers.Results) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrTickerNotFound, company)
	}

	best := tickers.Results[0]
	profile := &Profile{
		Ticker:   best.Ticker,
		Name:     best.Name,
		Market:   best.Market,
		Exchange: best.PrimaryExchange,
		Currency: best.CurrencyName,
	}

	barQuery := url.Values{}
	barQuery.Set("adjusted", "true")
	barQuery.Set("apiKey", c.apiKey)
	_, bars, err := utils.DoGetSync[aggregatesResponse](ctx, c.httpClient,
		c.baseURL+"/v2/aggs/ticker/"+url.PathEscape(best.Ticker)+"/prev?"+barQuery.Encode())
	if err != nil {
		return profile, nil
	}
	if len(bars.Results) > 0 {
		bar := bars.Results[0]
		profile.PreviousClose = &bar
	}
	return profile, nil
}
