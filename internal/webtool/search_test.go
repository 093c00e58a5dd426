package webtool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/satchelworks/satchel/internal/httpx"
	"github.com/satchelworks/satchel/internal/payload"
)

const ddgPage = `<!DOCTYPE html>
<html><body>
<div class="serp__results">
  <div class="result results_links web-result">
    <h2 class="result__title">
      <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fgo-concurrency&amp;rut=abc123">Go Concurrency Patterns</a>
    </h2>
    <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fgo-concurrency">Share memory by
      communicating.</a>
  </div>
  <div class="result results_links web-result">
    <h2 class="result__title">
      <a class="result__a" href="https://go.dev/blog/pipelines">Go Pipelines</a>
    </h2>
    <div class="result__snippet">Patterns for streaming data.</div>
  </div>
  <div class="result results_links web-result">
    <h2 class="result__title">
      <a class="result__a" href="https://example.org/third">Third Result</a>
    </h2>
  </div>
</div>
</body></html>`

func testSearchClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := httpx.New(httpx.Config{Retry: httpx.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}})
	return NewClient(hc, Config{SearchURL: srv.URL + "/html/"})
}

func TestSearch(t *testing.T) {
	c := testSearchClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/html/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "go concurrency" {
			t.Errorf("q = %q", got)
		}
		w.Write([]byte(ddgPage))
	}))

	results, err := c.Search(context.Background(), "go concurrency", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}

	r0 := results[0]
	if r0.Title != "Go Concurrency Patterns" {
		t.Errorf("title = %q", r0.Title)
	}
	if r0.URL != "https://example.com/go-concurrency" {
		t.Errorf("redirect not unwrapped: %q", r0.URL)
	}
	if r0.Snippet != "Share memory by communicating." {
		t.Errorf("snippet = %q", r0.Snippet)
	}

	if results[1].URL != "https://go.dev/blog/pipelines" {
		t.Errorf("plain URL mangled: %q", results[1].URL)
	}
	if results[1].Snippet != "Patterns for streaming data." {
		t.Errorf("snippet = %q", results[1].Snippet)
	}
	if results[2].Snippet != "" {
		t.Errorf("snippet should be empty, got %q", results[2].Snippet)
	}
}

func TestSearchCapsResults(t *testing.T) {
	c := testSearchClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ddgPage))
	}))
	results, err := c.Search(context.Background(), "go", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}
}

func TestSearchNoHits(t *testing.T) {
	c := testSearchClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="no-results">No results.</div></body></html>`))
	}))
	results, err := c.Search(context.Background(), "xyzzy", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	c := testSearchClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	}))
	_, err := c.Search(context.Background(), "   ", 10)
	if payload.TypeOf(err) != "invalid_argument" {
		t.Errorf("error = %v", err)
	}
}

func TestUnwrapRedirect(t *testing.T) {
	cases := []struct{ in, want string }{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage&rut=x", "https://example.com/page"},
		{"https://duckduckgo.com/l/?uddg=http%3A%2F%2Fa.b%2Fc%3Fd%3De", "http://a.b/c?d=e"},
		{"https://example.com/direct", "https://example.com/direct"},
		{"//duckduckgo.com/l/", "https://duckduckgo.com/l/"},
	}
	for _, tc := range cases {
		if got := unwrapRedirect(tc.in); got != tc.want {
			t.Errorf("unwrapRedirect(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
