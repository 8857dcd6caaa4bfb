package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Sisicca/EditorialAgents/config"
	"github.com/Sisicca/EditorialAgents/internal/llm"
	"github.com/Sisicca/EditorialAgents/internal/outline"
	"github.com/Sisicca/EditorialAgents/internal/telemetry"
)

// Verdict is the outcome of one continuation evaluation.
type Verdict int

const (
	VerdictContinue Verdict = iota
	VerdictComplete
	VerdictFailed
)

// Evaluation is the tri-state result of asking the model whether a node
// needs more evidence.
type Evaluation struct {
	Verdict Verdict
	Queries []string
	Reason  string
}

// StatusUpdate is a progress snapshot for one leaf, published after every
// state transition.
type StatusUpdate struct {
	Message        string
	CurrentQuery   string
	Iteration      int
	MaxIterations  int
	DocsPreview    []string
	ContentPreview string
	Completed      bool
	Err            string
}

// ProgressSink receives per-leaf status updates keyed by the node's dotted
// path. Implementations must be safe for concurrent use.
type ProgressSink interface {
	NodeStatus(path string, update StatusUpdate)
}

// Controller drives the per-leaf retrieval loop: generate queries, search,
// deduplicate, refine the node draft, then evaluate whether to continue.
// Each leaf runs in its own goroutine under a shared worker bound and owns
// its node exclusively; failures are recorded on the leaf and never abort
// siblings.
type Controller struct {
	LLM      llm.Provider
	Executor *SearchExecutor
	Cfg      config.RetrievalConfig
	Logger   *log.Logger
	Sink     ProgressSink
	Skip     func(title string) bool
}

// Run retrieves evidence for every eligible leaf of the tree. It returns
// an error only when the context is cancelled; per-leaf failures are
// reported through the sink and the logger.
func (c *Controller) Run(ctx context.Context, tree *outline.Tree) error {
	logger := c.logger()
	leaves := tree.Leaves()

	sem := make(chan struct{}, c.Cfg.MaxWorkers)
	var wg sync.WaitGroup
	for _, leaf := range leaves {
		if leaf == tree.Root {
			continue
		}
		if c.Skip != nil && c.Skip(leaf.Title) {
			logger.Printf("skipping retrieval for %q", leaf.Title)
			continue
		}
		leaf := leaf
		path := tree.Path(leaf)
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			c.processLeaf(ctx, tree, path, leaf)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// processLeaf runs the full retrieval loop for one node. Only this
// goroutine writes the node.
func (c *Controller) processLeaf(ctx context.Context, tree *outline.Tree, path string, node *outline.Node) {
	logger := c.logger()
	target := Target{Topic: tree.Root.Title, Title: node.Title, Summary: node.Summary}

	// the outline may arrive with content and references from an edited
	// payload; retrieval always starts from a clean node
	node.Content = ""
	node.References = nil

	fail := func(stage string, err error) {
		logger.Printf("node %s (%q) failed during %s: %v", path, node.Title, stage, err)
		telemetry.NodesFinished.WithLabelValues("retrieval", "failed").Inc()
		c.publish(path, StatusUpdate{
			Message:       "failed during " + stage,
			MaxIterations: c.Cfg.MaxIterations,
			Completed:     true,
			Err:           err.Error(),
		})
	}

	c.publish(path, StatusUpdate{Message: "generating queries", MaxIterations: c.Cfg.MaxIterations})
	queries, err := c.generateQueries(ctx, tree, node)
	if err != nil {
		fail("query generation", err)
		return
	}

	usedQueries := append([]string(nil), queries...)
	var history []Document
	dedup := Deduplicator{Threshold: c.Cfg.SimilarityThreshold}
	iteration := 0

	for {
		c.publish(path, StatusUpdate{
			Message:       "searching",
			CurrentQuery:  strings.Join(queries, " | "),
			Iteration:     iteration,
			MaxIterations: c.Cfg.MaxIterations,
		})
		batch := c.Executor.Execute(ctx, queries, target)

		fresh := dedup.Filter(history, batch)
		if len(fresh) == 0 {
			logger.Printf("node %s: no new documents, completing", path)
			break
		}
		history = append(history, fresh...)

		c.publish(path, StatusUpdate{
			Message:       "refining content",
			Iteration:     iteration,
			MaxIterations: c.Cfg.MaxIterations,
			DocsPreview:   previews(fresh),
		})
		if err := c.updateContent(ctx, node, target, fresh); err != nil {
			fail("content refinement", err)
			return
		}
		node.References = MergeReferences(node.References, history)

		if iteration >= c.Cfg.MaxIterations-1 {
			logger.Printf("node %s: iteration budget reached, completing", path)
			break
		}

		eval := c.evaluate(ctx, node, target, usedQueries)
		if eval.Verdict == VerdictFailed {
			fail("evaluation", fmt.Errorf("%s", eval.Reason))
			return
		}
		if eval.Verdict == VerdictComplete {
			break
		}
		queries = eval.Queries
		usedQueries = append(usedQueries, queries...)
		iteration++
	}

	telemetry.NodesFinished.WithLabelValues("retrieval", "completed").Inc()
	telemetry.RetrievalIterations.Observe(float64(iteration + 1))
	c.publish(path, StatusUpdate{
		Message:        "completed",
		Iteration:      iteration,
		MaxIterations:  c.Cfg.MaxIterations,
		ContentPreview: preview(node.Content, 300),
		Completed:      true,
	})
}

// generateQueries asks the model for search queries. Only a transport error
// is returned as an error; an unparseable or empty answer degrades to a
// single query made of the node title, so the loop always gets to search.
func (c *Controller) generateQueries(ctx context.Context, tree *outline.Tree, node *outline.Node) ([]string, error) {
	resp, err := c.LLM.Complete(ctx, queryGenerationPrompt(tree.Root.Title, tree.PaperStructure(), node.Title, node.Summary))
	if err != nil {
		telemetry.LLMRequests.WithLabelValues("queries", telemetry.OutcomeError).Inc()
		return nil, err
	}
	telemetry.LLMRequests.WithLabelValues("queries", telemetry.OutcomeOK).Inc()
	titleOnly := func(reason string) []string {
		c.logger().Printf("node %q: %s, falling back to the title query", node.Title, reason)
		return []string{node.Title}
	}
	raw := llm.ExtractJSONArray(resp)
	if raw == "" {
		return titleOnly("no query array in response"), nil
	}
	var queries []string
	if err := json.Unmarshal([]byte(raw), &queries); err != nil {
		return titleOnly("undecodable query array"), nil
	}
	var out []string
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return titleOnly("empty query array"), nil
	}
	return out, nil
}

// updateContent rewrites the node draft so it folds in the new evidence.
func (c *Controller) updateContent(ctx context.Context, node *outline.Node, target Target, fresh []Document) error {
	resp, err := c.LLM.Complete(ctx, updateContentPrompt(target.Title, target.Summary, node.Content, FormatForPrompt(fresh)))
	if err != nil {
		telemetry.LLMRequests.WithLabelValues("draft", telemetry.OutcomeError).Inc()
		return err
	}
	telemetry.LLMRequests.WithLabelValues("draft", telemetry.OutcomeOK).Inc()
	node.Content = strings.TrimSpace(resp)
	return nil
}

// evaluate asks the model whether the node needs more evidence. A transport
// error fails the node; the completion sentinel or an unparseable response
// both end the loop as completed.
func (c *Controller) evaluate(ctx context.Context, node *outline.Node, target Target, usedQueries []string) Evaluation {
	resp, err := c.LLM.Complete(ctx, evaluationPrompt(target.Title, target.Summary, node.Content, usedQueries))
	if err != nil {
		telemetry.LLMRequests.WithLabelValues("evaluate", telemetry.OutcomeError).Inc()
		return Evaluation{Verdict: VerdictFailed, Reason: err.Error()}
	}
	telemetry.LLMRequests.WithLabelValues("evaluate", telemetry.OutcomeOK).Inc()
	if strings.Contains(resp, retrievalComplete) {
		return Evaluation{Verdict: VerdictComplete}
	}
	var parsed struct {
		Queries []string `json:"queries"`
	}
	// the prompt asks for {"queries": [...]} but a bare array of queries
	// is accepted too
	if raw := llm.ExtractJSONObject(resp); raw != "" {
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return Evaluation{Verdict: VerdictComplete}
		}
	} else if raw := llm.ExtractJSONArray(resp); raw != "" {
		if err := json.Unmarshal([]byte(raw), &parsed.Queries); err != nil {
			return Evaluation{Verdict: VerdictComplete}
		}
	} else {
		return Evaluation{Verdict: VerdictComplete}
	}
	var queries []string
	for _, q := range parsed.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return Evaluation{Verdict: VerdictComplete}
	}
	return Evaluation{Verdict: VerdictContinue, Queries: queries}
}

func (c *Controller) publish(path string, update StatusUpdate) {
	if c.Sink != nil {
		c.Sink.NodeStatus(path, update)
	}
}

func (c *Controller) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags)
}

func previews(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		label := d.Title
		if label == "" {
			label = preview(d.Content, 60)
		}
		out = append(out, fmt.Sprintf("[%s] %s", d.CitationKey, label))
	}
	return out
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
