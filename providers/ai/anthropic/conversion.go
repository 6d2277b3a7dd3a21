package anthropic

import (
	"strings"

	"github.com/luislascano01/Stratvithor/providers/ai"
)

// jsonInstruction stands in for a json_object response format.
const jsonInstruction = "Respond with a single JSON object and nothing else."

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
	TopP        *float32           `json:"top_p,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func requestToAnthropic(request ai.ChatRequest) anthropicRequest {
	model := request.Model
	if model == "" {
		model = DefaultModel
	}

	systemParts := make([]string, 0, 2)
	if request.SystemPrompt != "" {
		systemParts = append(systemParts, request.SystemPrompt)
	}

	messages := make([]anthropicMessage, 0, len(request.Messages))
	for _, message := range request.Messages {
		if message.Content == "" {
			continue
		}
		role := "user"
		switch message.Role {
		case ai.RoleSystem, ai.RoleDeveloper:
			// Mid-conversation instructions keep their position as user turns
			// once the conversation has started.
			if len(messages) == 0 {
				systemParts = append(systemParts, message.Content)
				continue
			}
		case ai.RoleAssistant:
			role = "assistant"
		}

		if last := len(messages) - 1; last >= 0 && messages[last].Role == role {
			messages[last].Content += "\n\n" + message.Content
			continue
		}
		messages = append(messages, anthropicMessage{Role: role, Content: message.Content})
	}

	// The conversation must open with a user turn.
	if len(messages) == 0 || messages[0].Role != "user" {
		messages = append([]anthropicMessage{{Role: "user", Content: "Begin."}}, messages...)
	}

	if format := request.ResponseFormat; format != nil && format.Type == "json_object" {
		systemParts = append(systemParts, jsonInstruction)
	}

	converted := anthropicRequest{
		Model:     model,
		System:    strings.Join(systemParts, "\n\n"),
		Messages:  messages,
		MaxTokens: DefaultMaxTokens,
	}
	if config := request.GenerationConfig; config != nil {
		if config.MaxTokens > 0 {
			converted.MaxTokens = config.MaxTokens
		}
		if config.Temperature != 0 {
			temperature := config.Temperature
			converted.Temperature = &temperature
		}
		if config.TopP != 0 {
			topP := config.TopP
			converted.TopP = &topP
		}
	}
	return converted
}

func anthropicToGeneric(response anthropicResponse) *ai.ChatResponse {
	textParts := make([]string, 0, len(response.Content))
	for _, block := range response.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}

	result := &ai.ChatResponse{
		Id:           response.ID,
		Model:        response.Model,
		Content:      strings.Join(textParts, "\n"),
		FinishReason: mapStopReason(response.StopReason),
		Usage: &ai.Usage{
			PromptTokens:     response.Usage.InputTokens,
			CompletionTokens: response.Usage.OutputTokens,
			TotalTokens:      response.Usage.InputTokens + response.Usage.OutputTokens,
		},
	}
	if response.StopReason == "refusal" {
		result.Refusal = result.Content
		if result.Refusal == "" {
			result.Refusal = "the model declined to answer"
		}
	}
	return result
}

// mapStopReason translates Anthropic stop reasons to the finish reasons
// callers already know from OpenAI.
func mapStopReason(stopReason string) string {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "refusal":
		return "content_filter"
	default:
		return stopReason
	}
}
