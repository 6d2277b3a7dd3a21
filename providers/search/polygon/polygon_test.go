package polygon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLookup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/reference/tickers", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") != "Acme Corp" || r.URL.Query().Get("apiKey") != "pk" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"results":[{"ticker":"ACME","name":"Acme Corp","market":"stocks","primary_exchange":"XNYS","currency_name":"usd"}]}`))
	})
	mux.HandleFunc("/v2/aggs/ticker/ACME/prev", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"o":10,"h":12,"l":9.5,"c":11.25,"v":1000,"t":1700000000000}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(WithAPIKey("pk"), WithBaseURL(server.URL))

	profile, err := client.Lookup(context.Background(), "Acme Corp")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if profile.Ticker != "ACME" || profile.Exchange != "XNYS" {
		t.Errorf("profile = %+v", profile)
	}
	if profile.PreviousClose == nil || profile.PreviousClose.Close != 11.25 {
		t.Errorf("previous close = %+v", profile.PreviousClose)
	}
}

func TestLookup_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	_, err := New(WithAPIKey("pk"), WithBaseURL(server.URL)).Lookup(context.Background(), "Nobody Inc")
	if !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("error = %v, want ErrTickerNotFound", err)
	}
}
