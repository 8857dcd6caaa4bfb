package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Serper queries the serper.dev Google wrapper. Organic hits only carry
// snippets; wrap with a Fetcher to pull full page text.
type Serper struct {
	APIKey string
	Client *http.Client
}

func (s *Serper) Search(ctx context.Context, query string, max int) ([]Result, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": query, "num": max}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://google.serper.dev/search", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper status %d", resp.StatusCode)
	}
	var raw struct {
		Organic []struct {
			Title    string  `json:"title"`
			Link     string  `json:"link"`
			Snippet  string  `json:"snippet"`
			Position float64 `json:"position"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []Result
	for i, it := range raw.Organic {
		if i >= max {
			break
		}
		out = append(out, Result{Title: it.Title, URL: it.Link, Content: it.Snippet})
	}
	return out, nil
}
