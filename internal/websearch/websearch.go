package websearch

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Result is one web search hit. Content may be empty for providers that
// only return snippets; a Fetcher can fill it afterwards.
type Result struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// Searcher runs one query against a web search backend.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]Result, error)
}

type Provider string

const (
	TavilyProvider Provider = "tavily"
	SerperProvider Provider = "serper"
)

// NewSearcher selects a provider implementation by name. maxChars bounds
// the content of each result; zero means no bound.
func NewSearcher(provider Provider, apiKey string, maxChars int) (Searcher, error) {
	switch provider {
	case TavilyProvider:
		return &Tavily{APIKey: apiKey, MaxChars: maxChars}, nil
	case SerperProvider:
		return &Serper{APIKey: apiKey}, nil
	default:
		return nil, fmt.Errorf("unsupported web search provider %q", provider)
	}
}

// truncate cuts s to at most n bytes without splitting a rune. n <= 0
// disables the bound.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
