// Package pipeline wires the planning, retrieval and composition stages
// into the end-to-end article generator shared by the CLI and the server.
package pipeline

import (
	"context"
	"log"

	"github.com/Sisicca/EditorialAgents/config"
	"github.com/Sisicca/EditorialAgents/internal/compose"
	"github.com/Sisicca/EditorialAgents/internal/kb"
	"github.com/Sisicca/EditorialAgents/internal/llm"
	"github.com/Sisicca/EditorialAgents/internal/outline"
	"github.com/Sisicca/EditorialAgents/internal/planner"
	"github.com/Sisicca/EditorialAgents/internal/retrieval"
	"github.com/Sisicca/EditorialAgents/internal/websearch"
)

type Pipeline struct {
	cfg      *config.Config
	provider llm.Provider
	executor *retrieval.SearchExecutor
	logger   *log.Logger
}

// New builds the shared components once: the LLM provider, the web search
// lane with its optional content fetcher, and the knowledge-base index when
// one is configured. Opening the index loads and embeds the whole corpus,
// so construction can take a while on large knowledge bases.
func New(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	logger := log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)

	provider, err := llm.NewOpenAIProvider(llm.OpenAIOptions{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, err
	}

	executor := &retrieval.SearchExecutor{
		LLM:     provider,
		Cfg:     cfg.Retrieval,
		Results: cfg.WebSearch.MaxResults,
		Logger:  log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
	}
	if cfg.WebSearch.APIKey != "" {
		searcher, err := websearch.NewSearcher(websearch.Provider(cfg.WebSearch.Provider), cfg.WebSearch.APIKey, cfg.WebSearch.MaxContentLength)
		if err != nil {
			return nil, err
		}
		executor.Web = searcher
		// tavily ships page content inline; other providers need a fetch pass
		if cfg.WebSearch.Provider != string(websearch.TavilyProvider) {
			executor.Fetcher = &websearch.Fetcher{
				Timeout:    cfg.WebSearch.FetchTimeout,
				MaxChars:   cfg.WebSearch.MaxContentLength,
				UseBrowser: cfg.WebSearch.UseBrowser,
			}
		}
	} else {
		logger.Printf("web search disabled (no api key configured)")
	}
	if cfg.KB.Enabled {
		index, err := kb.Open(ctx, kb.Options{
			Path:         cfg.KB.Path,
			ChunkSize:    cfg.KB.ChunkSize,
			ChunkOverlap: cfg.KB.ChunkOverlap,
			TopK:         cfg.KB.TopK,
			TopN:         cfg.KB.TopN,
			EmbedBatch:   cfg.KB.EmbedBatch,
		}, provider, log.New(log.Writer(), "[KB] ", log.LstdFlags))
		if err != nil {
			return nil, err
		}
		executor.KB = index
	}

	return &Pipeline{cfg: cfg, provider: provider, executor: executor, logger: logger}, nil
}

// Plan generates and validates the outline for a brief.
func (p *Pipeline) Plan(ctx context.Context, brief planner.Brief) (*outline.Tree, error) {
	b := &planner.Builder{LLM: p.provider, Logger: log.New(log.Writer(), "[PLANNER] ", log.LstdFlags)}
	return b.Build(ctx, brief)
}

// Retrieve fills every eligible leaf of the tree with evidence. The sink
// may be nil when no live progress is needed.
func (p *Pipeline) Retrieve(ctx context.Context, tree *outline.Tree, sink retrieval.ProgressSink) error {
	c := &retrieval.Controller{
		LLM:      p.provider,
		Executor: p.executor,
		Cfg:      p.cfg.Retrieval,
		Logger:   log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags),
		Sink:     sink,
		Skip:     outline.IsIntroOrConclusion,
	}
	return c.Run(ctx, tree)
}

// ComposeArticle writes the internal nodes, intro and conclusion, then
// assembles the final markdown with compiled references.
func (p *Pipeline) ComposeArticle(ctx context.Context, tree *outline.Tree) (string, error) {
	c := &compose.Composer{
		LLM:    p.provider,
		Cfg:    p.cfg.Compose,
		Logger: log.New(log.Writer(), "[COMPOSE] ", log.LstdFlags),
	}
	if err := c.Compose(ctx, tree); err != nil {
		return "", err
	}
	return compose.Assemble(tree), nil
}

// Run executes the whole chain for one brief.
func (p *Pipeline) Run(ctx context.Context, brief planner.Brief) (string, error) {
	tree, err := p.Plan(ctx, brief)
	if err != nil {
		return "", err
	}
	if err := p.Retrieve(ctx, tree, nil); err != nil {
		return "", err
	}
	return p.ComposeArticle(ctx, tree)
}
