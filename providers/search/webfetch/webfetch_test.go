package webfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/luislascano01/Stratvithor/providers/search"
)

func TestEnricher_FillsMissingContent(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>Quarterly results</h1><p>Revenue grew <strong>12%</strong>.</p></body></html>`))
	}))
	defer page.Close()

	inner := search.SearcherFunc(func(ctx context.Context, query search.Query) ([]search.Hit, error) {
		return []search.Hit{
			{Title: "results", URL: page.URL},
			{Title: "already filled", URL: page.URL, Content: "kept"},
		}, nil
	})

	enricher := New(inner, WithHTTPClient(page.Client()))

	hits, err := enricher.Search(context.Background(), search.Query{Text: "q"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if !strings.Contains(hits[0].Content, "# Quarterly results") || !strings.Contains(hits[0].Content, "**12%**") {
		t.Errorf("enriched content = %q", hits[0].Content)
	}
	if hits[1].Content != "kept" {
		t.Errorf("existing content overwritten: %q", hits[1].Content)
	}
}

func TestEnricher_PageFailureKeepsHit(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer page.Close()

	inner := search.SearcherFunc(func(ctx context.Context, query search.Query) ([]search.Hit, error) {
		return []search.Hit{{Title: "paywalled", URL: page.URL, Snippet: "teaser"}}, nil
	})

	hits, err := New(inner, WithHTTPClient(page.Client())).Search(context.Background(), search.Query{Text: "q"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if hits[0].Content != "" || hits[0].Snippet != "teaser" {
		t.Errorf("hit = %+v", hits[0])
	}
}
