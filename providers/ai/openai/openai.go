package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/luislascano01/Stratvithor/providers/ai"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when a request names no model.
	DefaultModel = "gpt-4o"
)

// OpenAIProvider implements the Provider interface for OpenAI API
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider instance with default values
func NewOpenAIProvider() *OpenAIProvider {
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &OpenAIProvider{
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAPIKey sets the API key for the provider
func (p *OpenAIProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API
func (p *OpenAIProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient sets a custom HTTP client
func (p *OpenAIProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// StatusError reports a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openai status %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether retrying the call may succeed.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// SendMessage implements the Provider interface
func (p *OpenAIProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("API key is not set")
	}

	config := goopenai.DefaultConfig(p.apiKey)
	config.BaseURL = p.baseURL
	if p.client != nil {
		config.HTTPClient = p.client
	}
	client := goopenai.NewClientWithConfig(config)

	resp, err := client.CreateChatCompletion(ctx, requestFromGeneric(request))
	if err != nil {
		return nil, convertError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return responseToGeneric(resp), nil
}

func requestFromGeneric(request ai.ChatRequest) goopenai.ChatCompletionRequest {
	model := request.Model
	if model == "" {
		model = DefaultModel
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: request.SystemPrompt,
		})
	}
	for _, message := range request.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    string(message.Role),
			Content: message.Content,
		})
	}

	converted := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if config := request.GenerationConfig; config != nil {
		converted.MaxTokens = config.MaxTokens
		converted.Temperature = config.Temperature
		converted.TopP = config.TopP
	}
	if format := request.ResponseFormat; format != nil && format.Type == "json_object" {
		converted.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return converted
}

func responseToGeneric(resp goopenai.ChatCompletionResponse) *ai.ChatResponse {
	choice := resp.Choices[0]
	return &ai.ChatResponse{
		Id:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Refusal:      choice.Message.Refusal,
		Usage: &ai.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}

func convertError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return fmt.Errorf("chat completion failed: %w", &StatusError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message})
	}
	var requestErr *goopenai.RequestError
	if errors.As(err, &requestErr) {
		return fmt.Errorf("chat completion failed: %w", &StatusError{StatusCode: requestErr.HTTPStatusCode, Message: requestErr.Error()})
	}
	return fmt.Errorf("chat completion failed: %w", err)
}
