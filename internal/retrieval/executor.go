package retrieval

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sisicca/EditorialAgents/config"
	"github.com/Sisicca/EditorialAgents/internal/kb"
	"github.com/Sisicca/EditorialAgents/internal/llm"
	"github.com/Sisicca/EditorialAgents/internal/telemetry"
	"github.com/Sisicca/EditorialAgents/internal/websearch"
)

// KBSearcher is the knowledge-base lane of the executor.
type KBSearcher interface {
	Search(ctx context.Context, query string) ([]kb.Hit, error)
}

// Target carries the node context the executor refines evidence against.
type Target struct {
	Topic   string
	Title   string
	Summary string
}

// SearchExecutor fans queries out over the web and knowledge-base lanes
// with independent concurrency bounds. A query that keeps failing after
// retries is logged and dropped; the batch always returns whatever the
// other queries produced. When every lane comes back empty the executor
// synthesizes a fallback document so downstream stages always have
// something to work with.
type SearchExecutor struct {
	Web     websearch.Searcher // nil disables the web lane
	KB      KBSearcher         // nil disables the knowledge-base lane
	Fetcher *websearch.Fetcher // optional content enrichment for snippet-only providers
	LLM     llm.Provider
	Cfg     config.RetrievalConfig
	Results int // max web results per query
	Logger  *log.Logger
}

// Execute runs every query on every enabled lane and returns the adapted,
// refined documents. It never fails as a whole; degradation is per query.
func (e *SearchExecutor) Execute(ctx context.Context, queries []string, target Target) []Document {
	logger := e.logger()

	var mu sync.Mutex
	var docs []Document
	collect := func(batch []Document) {
		mu.Lock()
		docs = append(docs, batch...)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	if e.Web != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(e.Cfg.WebConcurrency)
			for _, q := range queries {
				q := q
				g.Go(func() error {
					collect(e.webQuery(gctx, q, target))
					return nil
				})
			}
			_ = g.Wait()
		}()
	}
	if e.KB != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(e.Cfg.KBConcurrency)
			for _, q := range queries {
				q := q
				g.Go(func() error {
					collect(e.kbQuery(gctx, q, target))
					return nil
				})
			}
			_ = g.Wait()
		}()
	}
	wg.Wait()

	if len(docs) == 0 {
		logger.Printf("no results for %q, generating fallback content", target.Title)
		return []Document{e.fallback(ctx, target)}
	}
	return docs
}

func (e *SearchExecutor) webQuery(ctx context.Context, query string, target Target) []Document {
	results, err := e.withRetry(ctx, query, func() ([]websearch.Result, error) {
		return e.Web.Search(ctx, query, e.maxResults())
	})
	if err != nil {
		telemetry.SearchRequests.WithLabelValues(string(SourceWeb), telemetry.OutcomeError).Inc()
		e.logger().Printf("web search %q failed after retries: %v", query, err)
		return nil
	}
	telemetry.SearchRequests.WithLabelValues(string(SourceWeb), telemetry.OutcomeOK).Inc()
	if e.Fetcher != nil {
		results = e.Fetcher.Enrich(ctx, results)
	}
	var docs []Document
	for _, r := range results {
		if r.Content == "" {
			continue
		}
		doc := FromWebResult(r)
		doc.Query = query
		doc.Content = e.refine(ctx, doc.Content, target)
		if doc.Content != "" {
			docs = append(docs, doc)
		}
	}
	return docs
}

func (e *SearchExecutor) kbQuery(ctx context.Context, query string, target Target) []Document {
	hits, err := e.withRetryKB(ctx, query)
	if err != nil {
		telemetry.SearchRequests.WithLabelValues(string(SourceKB), telemetry.OutcomeError).Inc()
		e.logger().Printf("kb search %q failed after retries: %v", query, err)
		return nil
	}
	telemetry.SearchRequests.WithLabelValues(string(SourceKB), telemetry.OutcomeOK).Inc()
	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		if h.Content == "" {
			continue
		}
		doc := FromKBHit(h)
		doc.Query = query
		doc.Content = e.refine(ctx, doc.Content, target)
		if doc.Content != "" {
			docs = append(docs, doc)
		}
	}
	return docs
}

// withRetry runs fn up to MaxRetries times with a linearly growing delay
// between attempts.
func (e *SearchExecutor) withRetry(ctx context.Context, query string, fn func() ([]websearch.Result, error)) ([]websearch.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= e.Cfg.MaxRetries; attempt++ {
		results, err := fn()
		if err == nil {
			return results, nil
		}
		lastErr = err
		if attempt < e.Cfg.MaxRetries {
			e.logger().Printf("search %q attempt %d/%d failed: %v", query, attempt, e.Cfg.MaxRetries, err)
			select {
			case <-time.After(e.Cfg.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (e *SearchExecutor) withRetryKB(ctx context.Context, query string) ([]kb.Hit, error) {
	var lastErr error
	for attempt := 1; attempt <= e.Cfg.MaxRetries; attempt++ {
		hits, err := e.KB.Search(ctx, query)
		if err == nil {
			return hits, nil
		}
		lastErr = err
		if attempt < e.Cfg.MaxRetries {
			select {
			case <-time.After(e.Cfg.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// refine trims a raw page down to the material relevant for the target
// node. A refinement failure keeps the raw content rather than dropping
// the document.
func (e *SearchExecutor) refine(ctx context.Context, content string, target Target) string {
	if e.LLM == nil {
		return content
	}
	refined, err := e.LLM.Complete(ctx, refineDocumentPrompt(target.Title, target.Summary, content))
	if err != nil {
		telemetry.LLMRequests.WithLabelValues("refine", telemetry.OutcomeError).Inc()
		e.logger().Printf("refining document for %q failed, keeping raw content: %v", target.Title, err)
		return content
	}
	telemetry.LLMRequests.WithLabelValues("refine", telemetry.OutcomeOK).Inc()
	return refined
}

func (e *SearchExecutor) fallback(ctx context.Context, target Target) Document {
	content := target.Summary
	if e.LLM != nil {
		generated, err := e.LLM.Complete(ctx, fallbackContentPrompt(target.Topic, target.Title, target.Summary))
		if err != nil {
			telemetry.LLMRequests.WithLabelValues("fallback", telemetry.OutcomeError).Inc()
			e.logger().Printf("fallback generation for %q failed, using summary: %v", target.Title, err)
		} else {
			telemetry.LLMRequests.WithLabelValues("fallback", telemetry.OutcomeOK).Inc()
			content = generated
		}
	}
	return Generated(target.Title, content)
}

func (e *SearchExecutor) maxResults() int {
	if e.Results > 0 {
		return e.Results
	}
	return 5
}

func (e *SearchExecutor) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
}
