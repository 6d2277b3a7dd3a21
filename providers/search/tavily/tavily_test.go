package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luislascano01/Stratvithor/providers/search"
)

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s, want /search", r.URL.Path)
		}
		var body searchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.APIKey != "tvly-test" || body.Query != "ACME: market share" || body.MaxResults != 5 {
			t.Errorf("request = %+v", body)
		}
		_, _ = w.Write([]byte(`{"query":"q","results":[{"title":"ACME 10-K","url":"https://example.com/10k","content":"summary","score":0.9}]}`))
	}))
	defer server.Close()

	client := New(WithAPIKey("tvly-test"), WithBaseURL(server.URL), WithHTTPClient(server.Client()))

	hits, err := client.Search(context.Background(), search.Query{Text: "market share", Focus: "ACME"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].URL != "https://example.com/10k" || hits[0].Source != "tavily" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestSearch_RateLimitedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(WithAPIKey("tvly-test"), WithBaseURL(server.URL))

	_, err := client.Search(context.Background(), search.Query{Text: "q"})
	if !search.IsTransient(err) {
		t.Errorf("error = %v, want transient", err)
	}
}

func TestSearch_MissingKey(t *testing.T) {
	t.Setenv(envAPIKey, "")
	if _, err := New().Search(context.Background(), search.Query{Text: "q"}); err == nil {
		t.Fatal("expected error without API key")
	}
}
