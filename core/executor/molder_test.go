package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/ai"
	"github.com/luislascano01/Stratvithor/providers/search"
	"github.com/luislascano01/Stratvithor/providers/search/polygon"
)

func TestBuildMessages_Order(t *testing.T) {
	accumulated := Accumulated{
		Subject: "ACME",
		Lineage: []ParentOutput{
			{NodeID: "0", PromptText: "You are a financial analyst.", IsSystem: true},
			{NodeID: "1", PromptText: "Summarize the business.", Result: &task.Result{Title: "Business", Text: "ACME sells anvils."}},
		},
	}
	raw := RawData{
		Hits:      []search.Hit{{Title: "News", URL: "https://news.example/acme"}},
		Financial: &polygon.Profile{Ticker: "ACME"},
	}

	messages := BuildMessages(promptgraph.PromptNode{ID: "2", PromptText: "List the risks."}, raw, accumulated)

	wantRoles := []ai.MessageRole{
		ai.RoleUser,      // subject
		ai.RoleUser,      // financial context
		ai.RoleDeveloper, // system ancestor
		ai.RoleUser,      // ancestor prompt
		ai.RoleAssistant, // ancestor answer
		ai.RoleUser,      // node prompt
		ai.RoleDeveloper, // online data
		ai.RoleUser,      // focus reminder
	}
	if len(messages) != len(wantRoles) {
		t.Fatalf("len(messages) = %d, want %d: %+v", len(messages), len(wantRoles), messages)
	}
	for i, role := range wantRoles {
		if messages[i].Role != role {
			t.Errorf("messages[%d].Role = %s, want %s", i, messages[i].Role, role)
		}
	}
	if !strings.Contains(messages[1].Content, `"ticker": "ACME"`) {
		t.Errorf("financial message = %q", messages[1].Content)
	}
	if messages[4].Content != "ACME sells anvils." || messages[5].Content != "List the risks." {
		t.Errorf("lineage messages = %+v", messages[3:6])
	}
	if !strings.Contains(messages[6].Content, "ONLINE_DATA") {
		t.Errorf("online data message = %q", messages[6].Content)
	}
	if messages[7].Content != "We are talking about: ACME" {
		t.Errorf("last message = %q", messages[7].Content)
	}
}

func TestBuildMessages_PlaceholderDataOmitted(t *testing.T) {
	raw := RawData{Hits: []search.Hit{PlaceholderHit}, Placeholder: true}
	for _, message := range BuildMessages(overviewNode, raw, Accumulated{Subject: "ACME"}) {
		if strings.Contains(message.Content, "ONLINE_DATA") {
			t.Error("placeholder data sent as online data")
		}
	}
}

func TestLLMMolder_Mold(t *testing.T) {
	var request ai.ChatRequest
	provider := ai.ProviderFunc(func(_ context.Context, r ai.ChatRequest) (*ai.ChatResponse, error) {
		request = r
		return &ai.ChatResponse{Content: "```json\n{\"response\": \"## Overview\\nACME makes anvils.\", " +
			"\"web_references\": \"Annual report: https://acme.example/annual\\nUnsourced claim\"}\n```"}, nil
	})
	raw := RawData{Hits: []search.Hit{{Title: "News", URL: "https://news.example/acme"}}}

	result, err := NewLLMMolder(provider, WithModel("gpt-4o")).Mold(context.Background(), overviewNode, raw, Accumulated{Subject: "ACME"})
	if err != nil {
		t.Fatalf("Mold() error = %v", err)
	}

	if request.Model != "gpt-4o" || request.SystemPrompt != DefaultInstructions {
		t.Errorf("request model = %q system = %q", request.Model, request.SystemPrompt)
	}
	if request.ResponseFormat == nil || request.ResponseFormat.Type != "json_object" {
		t.Errorf("ResponseFormat = %+v", request.ResponseFormat)
	}
	if result.Title != "Overview" || result.Text != "## Overview\nACME makes anvils." {
		t.Errorf("result = %+v", result)
	}
	wantURLs := []string{"https://acme.example/annual", "", "https://news.example/acme"}
	if len(result.References) != len(wantURLs) {
		t.Fatalf("References = %+v", result.References)
	}
	for i, url := range wantURLs {
		if result.References[i].URL != url {
			t.Errorf("References[%d].URL = %q, want %q", i, result.References[i].URL, url)
		}
	}
}

func TestLLMMolder_PlainTextResponse(t *testing.T) {
	provider := ai.ProviderFunc(func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
		return &ai.ChatResponse{Content: "  ACME makes anvils.  "}, nil
	})

	result, err := NewLLMMolder(provider).Mold(context.Background(), overviewNode, RawData{}, Accumulated{})
	if err != nil {
		t.Fatalf("Mold() error = %v", err)
	}
	if result.Text != "ACME makes anvils." {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestLLMMolder_ProviderError(t *testing.T) {
	want := errors.New("quota exceeded")
	provider := ai.ProviderFunc(func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
		return nil, want
	})

	if _, err := NewLLMMolder(provider).Mold(context.Background(), overviewNode, RawData{}, Accumulated{}); !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
}
