package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Tavily queries the Tavily search API with raw page content included, so
// results usually need no follow-up fetch. Raw pages can be huge; MaxChars
// bounds the content of each result.
type Tavily struct {
	APIKey   string
	MaxChars int
	Client   *http.Client
}

func (t *Tavily) Search(ctx context.Context, query string, max int) ([]Result, error) {
	payload := map[string]any{
		"api_key":             t.APIKey,
		"query":               query,
		"max_results":         max,
		"include_raw_content": true,
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tavily.com/search", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily status %d", resp.StatusCode)
	}
	var raw struct {
		Results []struct {
			Title      string  `json:"title"`
			URL        string  `json:"url"`
			Content    string  `json:"content"`
			RawContent string  `json:"raw_content"`
			Score      float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(raw.Results))
	for i, r := range raw.Results {
		if i >= max {
			break
		}
		content := r.RawContent
		if content == "" {
			content = r.Content
		}
		out = append(out, Result{Title: r.Title, URL: r.URL, Content: truncate(content, t.MaxChars), Score: r.Score})
	}
	return out, nil
}
