package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/internal/utils"
	"github.com/luislascano01/Stratvithor/providers/ai"
	"github.com/luislascano01/Stratvithor/providers/observability"
)

// DefaultInstructions is the system prompt of every generation call.
const DefaultInstructions = "You are an assistant with the responsibility of answering the user prompts. " +
	"The user sometimes will provide online data to answer these prompts in the most up-to-date way. " +
	"If no online data is provided, answer to the best of your knowledge. " +
	"If the online data is empty, ignore it. " +
	"Write the section in markdown with correct citation of the online data sources.\n\n" +
	"Reply with a JSON object with two string fields: \"response\" holding the markdown section, and " +
	"\"web_references\" listing the sources you used, one per line, formatted as \"Title: URL\"."

// LLMMolder generates a section with a chat model.
type LLMMolder struct {
	provider     ai.Provider
	model        string
	instructions string
	validate     *validator.Validate
}

// MolderOption configures an LLMMolder.
type MolderOption func(*LLMMolder)

// WithModel sets the model name sent with each request.
func WithModel(model string) MolderOption {
	return func(m *LLMMolder) { m.model = model }
}

// WithInstructions replaces DefaultInstructions.
func WithInstructions(instructions string) MolderOption {
	return func(m *LLMMolder) { m.instructions = instructions }
}

// NewLLMMolder creates a molder over provider.
func NewLLMMolder(provider ai.Provider, opts ...MolderOption) *LLMMolder {
	molder := &LLMMolder{
		provider:     provider,
		instructions: DefaultInstructions,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(molder)
	}
	return molder
}

type modelOutput struct {
	Response      string `json:"response"`
	WebReferences string `json:"web_references"`
}

// Mold implements Molder.
func (m *LLMMolder) Mold(ctx context.Context, node promptgraph.PromptNode, raw RawData, accumulated Accumulated) (*task.Result, error) {
	request := ai.ChatRequest{
		Model:          m.model,
		SystemPrompt:   m.instructions,
		Messages:       BuildMessages(node, raw, accumulated),
		ResponseFormat: &ai.ResponseFormat{Type: "json_object"},
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMModel, m.model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		)
	}

	response, err := m.provider.SendMessage(ctx, request)
	if err != nil {
		return nil, err
	}
	if response.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", response.Refusal)
	}

	output, err := utils.ParseJSON[modelOutput](response.Content)
	if err != nil || output.Response == "" {
		output = modelOutput{Response: strings.TrimSpace(response.Content)}
	}

	return &task.Result{
		Title:      sectionTitle(node),
		Text:       output.Response,
		References: MergeReferences(m.validate, ParseReferences(output.WebReferences), raw.Hits),
	}, nil
}

// BuildMessages lays out the conversation for one node: the subject, the
// financial context, the ancestors' prompts and answers in topological order,
// the node's own prompt, the fetched data and a closing focus reminder.
// System ancestors contribute their prompt as a developer message and no
// answer.
func BuildMessages(node promptgraph.PromptNode, raw RawData, accumulated Accumulated) []ai.Message {
	messages := []ai.Message{{
		Role:    ai.RoleUser,
		Content: "The company we will be building the report on today is " + accumulated.Subject,
	}}

	if raw.Financial != nil {
		messages = append(messages, ai.Message{
			Role:    ai.RoleUser,
			Content: "Here is some data for context\n" + utils.JSONToString(raw.Financial, true),
		})
	}

	for _, ancestor := range accumulated.Lineage {
		if ancestor.IsSystem {
			messages = append(messages, ai.Message{Role: ai.RoleDeveloper, Content: ancestor.PromptText})
			continue
		}
		messages = append(messages, ai.Message{Role: ai.RoleUser, Content: ancestor.PromptText})
		if ancestor.Result != nil {
			messages = append(messages, ai.Message{Role: ai.RoleAssistant, Content: ancestor.Result.Text})
		}
	}

	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: node.PromptText})

	if len(raw.Hits) > 0 && !raw.Placeholder {
		messages = append(messages, ai.Message{
			Role: ai.RoleDeveloper,
			Content: strings.Repeat("#", 10) + "\nONLINE_DATA\n" + strings.Repeat("-", 10) + "\n" +
				utils.JSONToString(raw.Hits, true) + "\n" + strings.Repeat("-", 10) +
				"\nEnd of ONLINE_DATA\n" + strings.Repeat("#", 10),
		})
	}

	if accumulated.Subject != "" {
		messages = append(messages, ai.Message{Role: ai.RoleUser, Content: "We are talking about: " + accumulated.Subject})
	}
	return messages
}
