package ai

import (
	"context"
	"net/http"
)

// Provider is the interface every generation backend satisfies.
type Provider interface {
	// SendMessage sends a chat request and returns the completed response.
	// Returns an error if the call fails, the context is canceled, or the
	// response cannot be decoded.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// WithAPIKey sets the API key used for authenticating requests.
	WithAPIKey(apiKey string) Provider

	// WithBaseURL overrides the default base URL for API requests.
	WithBaseURL(baseURL string) Provider

	// WithHttpClient sets the HTTP client used for outbound requests.
	WithHttpClient(httpClient *http.Client) Provider
}

// ProviderFunc adapts a plain function to Provider. The With* methods are
// no-ops; it exists for stubs and tests.
type ProviderFunc func(ctx context.Context, request ChatRequest) (*ChatResponse, error)

// SendMessage calls the function.
func (fn ProviderFunc) SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	return fn(ctx, request)
}

func (fn ProviderFunc) WithAPIKey(string) Provider { return fn }

func (fn ProviderFunc) WithBaseURL(string) Provider { return fn }

func (fn ProviderFunc) WithHttpClient(*http.Client) Provider { return fn }
