package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

// Fetcher pulls readable article text for search results whose providers
// only return snippets. UseBrowser renders the page headless first, which
// survives script-heavy sites at the cost of a Chrome dependency.
type Fetcher struct {
	Timeout    time.Duration
	MaxChars   int
	UseBrowser bool
	Client     *http.Client
}

// Fetch returns the extracted main text of the page, truncated to MaxChars.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", fmt.Errorf("invalid url")
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var html string
	var err error
	if f.UseBrowser {
		html, err = f.renderHTML(ctx, rawURL)
	} else {
		html, err = f.getHTML(ctx, rawURL)
	}
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(rawURL))
	if err != nil {
		return "", fmt.Errorf("extracting article from %s: %w", rawURL, err)
	}
	text := truncate(strings.TrimSpace(article.TextContent), f.MaxChars)
	return text, nil
}

// Enrich fills empty result contents in place, dropping results whose pages
// could not be fetched.
func (f *Fetcher) Enrich(ctx context.Context, results []Result) []Result {
	out := results[:0]
	for _, r := range results {
		if r.Content != "" {
			out = append(out, r)
			continue
		}
		text, err := f.Fetch(ctx, r.URL)
		if err != nil || text == "" {
			continue
		}
		r.Content = text
		out = append(out, r)
	}
	return out
}

func (f *Fetcher) getHTML(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "EditorialAgents/1.0")
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch status %d for %s", resp.StatusCode, rawURL)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxHTMLBytes))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return string(raw), nil
}

func (f *Fetcher) renderHTML(ctx context.Context, rawURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("EditorialAgents/1.0"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}

// pages larger than this are cut off before readability runs
const maxHTMLBytes = 4 << 20
