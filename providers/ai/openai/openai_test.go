package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luislascano01/Stratvithor/providers/ai"
)

func TestSendMessage(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
		}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider().WithAPIKey("test-key").WithBaseURL(server.URL)

	response, err := provider.SendMessage(context.Background(), ai.ChatRequest{
		SystemPrompt: "be brief",
		Messages: []ai.Message{
			{Role: ai.RoleDeveloper, Content: "data"},
			{Role: ai.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if response.Content != "hello" || response.FinishReason != "stop" {
		t.Errorf("response = %+v", response)
	}
	if response.Usage == nil || response.Usage.TotalTokens != 4 {
		t.Errorf("usage = %+v", response.Usage)
	}

	if captured["model"] != DefaultModel {
		t.Errorf("model = %v, want %s", captured["model"], DefaultModel)
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(messages))
	}
	first, _ := messages[0].(map[string]any)
	second, _ := messages[1].(map[string]any)
	if first["role"] != "system" || second["role"] != "developer" {
		t.Errorf("roles = %v, %v", first["role"], second["role"])
	}
}

func TestSendMessage_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider().WithAPIKey("test-key").WithBaseURL(server.URL)

	_, err := provider.SendMessage(context.Background(), ai.ChatRequest{
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "hi"}},
	})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !statusErr.Transient() {
		t.Errorf("status error = %+v", statusErr)
	}
}

func TestSendMessage_MissingKey(t *testing.T) {
	provider := &OpenAIProvider{baseURL: defaultBaseURL}
	if _, err := provider.SendMessage(context.Background(), ai.ChatRequest{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
