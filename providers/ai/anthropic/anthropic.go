package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/luislascano01/Stratvithor/internal/utils"
	"github.com/luislascano01/Stratvithor/providers/ai"
	"github.com/luislascano01/Stratvithor/providers/observability"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	messagesEndpoint = "/messages"

	// anthropicVersion pins the wire format of requests and responses.
	anthropicVersion = "2023-06-01"

	// DefaultModel is used when a request names no model.
	DefaultModel = "claude-sonnet-4-5"

	// DefaultMaxTokens is sent when the request sets no limit; the API
	// requires one on every call.
	DefaultMaxTokens = 4096
)

// ErrMissingAPIKey is returned by SendMessage when no key is configured.
var ErrMissingAPIKey = errors.New("anthropic API key is not set")

// AnthropicProvider implements ai.Provider for Anthropic's Messages API.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ ai.Provider = (*AnthropicProvider)(nil)

// New returns a provider configured from ANTHROPIC_API_KEY and
// ANTHROPIC_API_BASE_URL.
func New() *AnthropicProvider {
	baseURL := os.Getenv("ANTHROPIC_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &AnthropicProvider{
		apiKey:  os.Getenv("ANTHROPIC_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAPIKey sets the API key.
func (p *AnthropicProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API base URL.
func (p *AnthropicProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient replaces the HTTP client.
func (p *AnthropicProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// SendMessage implements ai.Provider. Non-2xx answers come back as
// *utils.StatusError, which reports 429 and 5xx as transient.
func (p *AnthropicProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	wireRequest := requestToAnthropic(request)

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMModel, wireRequest.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(wireRequest.Messages)),
		)
	}

	// Anthropic authenticates with x-api-key rather than a bearer token.
	httpResponse, response, err := utils.DoPostSync[anthropicResponse](
		ctx,
		p.client,
		p.baseURL+messagesEndpoint,
		"",
		wireRequest,
		utils.HeaderOption{Key: "x-api-key", Value: p.apiKey},
		utils.HeaderOption{Key: "anthropic-version", Value: anthropicVersion},
	)
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, fmt.Errorf("empty response from Anthropic API: %s", httpResponse.Status)
	}

	result := anthropicToGeneric(*response)
	if result.Model == "" {
		result.Model = wireRequest.Model
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMFinishReason, result.FinishReason),
			observability.Int(observability.AttrLLMTokensTotal, result.Usage.TotalTokens),
		)
	}
	return result, nil
}
