package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luislascano01/Stratvithor/providers/search"
)

func newSearchServer(t *testing.T, healthy bool, searches *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
		_, _ = w.Write([]byte(`{"results":[{"title":"Annual report","url":"https://example.com/ar","snippet":"s","scrapped_text":"full"}]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestResolve_PicksHealthyCandidate(t *testing.T) {
	var searches atomic.Int32
	unhealthy := newSearchServer(t, false, &searches)
	healthy := newSearchServer(t, true, &searches)

	client := New([]string{unhealthy.URL, healthy.URL + "/"}, WithProbe(time.Second, 10*time.Millisecond, 2))

	endpoint, err := client.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if endpoint != healthy.URL+"/search" {
		t.Errorf("endpoint = %q, want %q", endpoint, healthy.URL+"/search")
	}

	hits, err := client.Search(context.Background(), search.Query{Text: "competitors", Focus: "ACME"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "full" || hits[0].Source != "websearch" {
		t.Errorf("hits = %+v", hits)
	}
	if searches.Load() != 1 {
		t.Errorf("search calls = %d, want 1", searches.Load())
	}
}

func TestResolve_NoHealthyCandidate(t *testing.T) {
	var searches atomic.Int32
	unhealthy := newSearchServer(t, false, &searches)

	client := New([]string{unhealthy.URL}, WithProbe(time.Second, time.Millisecond, 2))

	_, err := client.Search(context.Background(), search.Query{Text: "q"})
	if !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("error = %v, want ErrNoEndpoint", err)
	}
	if !search.IsTransient(err) {
		t.Error("unavailable search service should be transient")
	}
}

func TestResolve_ConcurrentCallersShareOneProbe(t *testing.T) {
	var probes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := New([]string{server.URL}, WithProbe(time.Second, time.Millisecond, 1))

	const callers = 8
	var wg sync.WaitGroup
	endpoints := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			endpoints[i], errs[i] = client.Resolve(context.Background())
		}()
	}
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d: Resolve() error = %v", i, errs[i])
		}
		if endpoints[i] != server.URL+"/search" {
			t.Errorf("caller %d: endpoint = %q", i, endpoints[i])
		}
	}
	if got := probes.Load(); got != 1 {
		t.Errorf("health probes = %d, want 1", got)
	}
}
