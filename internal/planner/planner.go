// Package planner turns a topic brief into a validated outline tree.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/Sisicca/EditorialAgents/internal/llm"
	"github.com/Sisicca/EditorialAgents/internal/outline"
	"github.com/Sisicca/EditorialAgents/internal/telemetry"
)

type Builder struct {
	LLM    llm.Provider
	Logger *log.Logger
}

// Brief is the user's description of the article to plan.
type Brief struct {
	Topic       string
	Description string
	Problem     string
}

// Build asks the model for a hierarchical outline and validates it. The
// validation error lists every structural violation at once so a bad plan
// can be diagnosed in one pass.
func (b *Builder) Build(ctx context.Context, brief Brief) (*outline.Tree, error) {
	logger := b.logger()
	resp, err := b.LLM.Complete(ctx, outlinePrompt(brief))
	if err != nil {
		telemetry.LLMRequests.WithLabelValues("plan", telemetry.OutcomeError).Inc()
		return nil, fmt.Errorf("generating outline: %w", err)
	}
	telemetry.LLMRequests.WithLabelValues("plan", telemetry.OutcomeOK).Inc()
	raw := llm.ExtractJSONObject(resp)
	if raw == "" {
		return nil, fmt.Errorf("no outline object in model response")
	}
	var root outline.Node
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("decoding outline: %w", err)
	}
	tree := outline.New(&root)
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	logger.Printf("planned outline %q with %d nodes", root.Title, len(tree.AllNodes()))
	return tree, nil
}

func outlinePrompt(brief Brief) string {
	return fmt.Sprintf(`Design the outline of a long-form article.

Topic: %s
Description: %s
Problem to address: %s

Rules:
- The root is the article itself with "level": 1 and a title naming the article.
- Every child has "level" equal to its parent's level plus one, at most %d.
- Include an introduction section first and a conclusion section last.
- Each node has "title", "level", "summary" and optionally "children".
- Leaf summaries must be concrete enough to research in isolation.

Respond with a single JSON object for the root node and nothing else.`,
		brief.Topic, brief.Description, brief.Problem, outline.MaxLevel)
}

func (b *Builder) logger() *log.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return log.New(log.Writer(), "[PLANNER] ", log.LstdFlags)
}
