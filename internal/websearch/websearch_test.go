package websearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestNewSearcher(t *testing.T) {
	t.Parallel()
	if _, err := NewSearcher(TavilyProvider, "k", 8000); err != nil {
		t.Fatalf("NewSearcher(tavily) error: %v", err)
	}
	if _, err := NewSearcher(SerperProvider, "k", 8000); err != nil {
		t.Fatalf("NewSearcher(serper) error: %v", err)
	}
	if _, err := NewSearcher(Provider("duck"), "k", 8000); err == nil {
		t.Fatal("NewSearcher(duck) = nil error, want unsupported provider")
	}
}

func TestFetcherEnrich(t *testing.T) {
	t.Parallel()
	page := `<!doctype html><html><head><title>Edge</title></head><body><article><p>` +
		strings.Repeat("Edge computing moves compute close to the data source. ", 20) +
		`</p></article></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := &Fetcher{Timeout: 5 * time.Second, MaxChars: 200}
	results := []Result{
		{URL: srv.URL + "/a"},
		{URL: srv.URL + "/missing"},
		{URL: srv.URL + "/b", Content: "already here"},
	}
	got := f.Enrich(context.Background(), results)
	if len(got) != 2 {
		t.Fatalf("Enrich kept %d results, want 2", len(got))
	}
	if !strings.Contains(got[0].Content, "Edge computing") {
		t.Errorf("fetched content = %q, want page text", got[0].Content)
	}
	if len(got[0].Content) > 200 {
		t.Errorf("content length = %d, want <= MaxChars 200", len(got[0].Content))
	}
	if got[1].Content != "already here" {
		t.Errorf("pre-filled content = %q, want untouched", got[1].Content)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTavilyClampsRawContent(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("界", 100)
	payload, _ := json.Marshal(map[string]any{
		"results": []map[string]any{
			{"title": "T", "url": "https://t", "raw_content": long, "score": 1.0},
		},
	})
	tv := &Tavily{APIKey: "k", MaxChars: 100, Client: &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(string(payload))),
				Header:     make(http.Header),
			}, nil
		}),
	}}
	results, err := tv.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if got := results[0].Content; len(got) > 100 {
		t.Errorf("content length = %d, want <= 100", len(got))
	}
	if !utf8.ValidString(results[0].Content) {
		t.Errorf("clamped content is invalid UTF-8: %q", results[0].Content)
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("界", 5)
	got := truncate(s, 4)
	if got != "界" {
		t.Errorf("truncate = %q, want one full rune", got)
	}
	if truncate(s, 0) != s {
		t.Error("truncate with zero bound altered the string")
	}
}
