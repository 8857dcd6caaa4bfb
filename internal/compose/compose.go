package compose

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Sisicca/EditorialAgents/config"
	"github.com/Sisicca/EditorialAgents/internal/llm"
	"github.com/Sisicca/EditorialAgents/internal/outline"
	"github.com/Sisicca/EditorialAgents/internal/telemetry"
)

// Composer fills internal nodes bottom-up from their children. Levels are
// processed deepest first with a hard barrier between them, so a parent
// never composes before all of its descendants are done. Within a level
// nodes compose concurrently, each written only by its own worker.
type Composer struct {
	LLM    llm.Provider
	Cfg    config.ComposeConfig
	Logger *log.Logger
}

// Compose writes every internal node, then the introduction and conclusion
// sections. A node whose composition fails ends up with empty content and a
// logged error; its siblings and ancestors still compose.
func (c *Composer) Compose(ctx context.Context, tree *outline.Tree) error {
	logger := c.logger()
	for level := tree.MaxLeafLevel(); level >= 1; level-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		var nodes []*outline.Node
		for _, n := range tree.NodesAtLevel(level) {
			if !n.IsLeaf() {
				nodes = append(nodes, n)
			}
		}
		if len(nodes) == 0 {
			continue
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.Cfg.MaxWorkers)
		for _, n := range nodes {
			n := n
			g.Go(func() error {
				if err := c.composeNode(gctx, tree, n); err != nil {
					logger.Printf("composing %q failed: %v", n.Title, err)
					telemetry.NodesFinished.WithLabelValues("compose", "failed").Inc()
					n.Content = ""
					return nil
				}
				telemetry.NodesFinished.WithLabelValues("compose", "completed").Inc()
				return nil
			})
		}
		// level barrier
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return c.writeIntroAndConclusion(ctx, tree)
}

func (c *Composer) composeNode(ctx context.Context, tree *outline.Tree, node *outline.Node) error {
	var children strings.Builder
	for _, child := range node.Children {
		fmt.Fprintf(&children, "%s %s\n\n%s\n\n", strings.Repeat("#", child.Level), child.Title, strings.TrimSpace(child.Content))
	}
	var prompt string
	if node == tree.Root {
		prompt = rootPrompt(node.Title, node.Summary, children.String())
	} else {
		prompt = sectionPrompt(node.Title, node.Summary, children.String())
	}
	resp, err := c.LLM.Complete(ctx, prompt)
	if err != nil {
		telemetry.LLMRequests.WithLabelValues("compose", telemetry.OutcomeError).Inc()
		return err
	}
	telemetry.LLMRequests.WithLabelValues("compose", telemetry.OutcomeOK).Inc()
	node.Content = strings.TrimSpace(resp)
	return nil
}

// writeIntroAndConclusion fills the first introduction-style and the first
// conclusion-style section from the composed body. Either failing leaves
// that section empty without failing the article.
func (c *Composer) writeIntroAndConclusion(ctx context.Context, tree *outline.Tree) error {
	logger := c.logger()
	body := mainBody(tree)
	if intro := findSection(tree, outline.IsIntroTitle); intro != nil {
		resp, err := c.LLM.Complete(ctx, introPrompt(tree.Root.Title, intro.Title, body))
		if err != nil {
			telemetry.LLMRequests.WithLabelValues("intro", telemetry.OutcomeError).Inc()
			logger.Printf("writing introduction failed: %v", err)
		} else {
			telemetry.LLMRequests.WithLabelValues("intro", telemetry.OutcomeOK).Inc()
			intro.Content = strings.TrimSpace(resp)
		}
	}
	if concl := findSection(tree, outline.IsConclusionTitle); concl != nil {
		resp, err := c.LLM.Complete(ctx, conclusionPrompt(tree.Root.Title, concl.Title, body))
		if err != nil {
			telemetry.LLMRequests.WithLabelValues("conclusion", telemetry.OutcomeError).Inc()
			logger.Printf("writing conclusion failed: %v", err)
		} else {
			telemetry.LLMRequests.WithLabelValues("conclusion", telemetry.OutcomeOK).Inc()
			concl.Content = strings.TrimSpace(resp)
		}
	}
	return ctx.Err()
}

// findSection returns the first non-root node whose title matches.
func findSection(tree *outline.Tree, match func(string) bool) *outline.Node {
	for _, n := range tree.AllNodes() {
		if n == tree.Root {
			continue
		}
		if match(n.Title) {
			return n
		}
	}
	return nil
}

// mainBody concatenates the content of every section that is neither an
// introduction nor a conclusion.
func mainBody(tree *outline.Tree) string {
	var b strings.Builder
	tree.Walk(func(_ string, n *outline.Node) {
		if n == tree.Root || outline.IsIntroOrConclusion(n.Title) {
			return
		}
		if strings.TrimSpace(n.Content) == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n\n%s\n\n", strings.Repeat("#", n.Level), n.Title, strings.TrimSpace(n.Content))
	})
	return strings.TrimRight(b.String(), "\n")
}

func (c *Composer) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.New(log.Writer(), "[COMPOSE] ", log.LstdFlags)
}
