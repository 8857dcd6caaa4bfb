package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Sisicca/EditorialAgents/config"
	"github.com/Sisicca/EditorialAgents/internal/llm"
	"github.com/Sisicca/EditorialAgents/internal/outline"
	"github.com/Sisicca/EditorialAgents/internal/websearch"
)

// fakeLLM answers prompts by recognizable fragments of the prompt text.
// Evaluation responses are consumed in order; once exhausted it answers
// with the completion sentinel.
type fakeLLM struct {
	mu            sync.Mutex
	queryResponse string // overrides the canned query array when set
	evalResponses []string
	failOn        string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.Contains(prompt, f.failOn) {
		return "", &llm.CompletionError{StatusCode: 500, Body: "boom"}
	}
	switch {
	case strings.Contains(prompt, "search queries"):
		if f.queryResponse != "" {
			return f.queryResponse, nil
		}
		return `["q1"]`, nil
	case strings.Contains(prompt, "Extract the material"):
		return "refined evidence", nil
	case strings.Contains(prompt, "Rewrite the draft"):
		return "updated draft", nil
	case strings.Contains(prompt, "gathered enough evidence"):
		if len(f.evalResponses) == 0 {
			return retrievalComplete, nil
		}
		resp := f.evalResponses[0]
		f.evalResponses = f.evalResponses[1:]
		return resp, nil
	case strings.Contains(prompt, "general knowledge"):
		return "generated fallback", nil
	}
	return "", fmt.Errorf("unexpected prompt: %.60s", prompt)
}

func (f *fakeLLM) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

// fakeWeb serves canned results per query and counts calls.
type fakeWeb struct {
	mu      sync.Mutex
	results map[string][]websearch.Result
	errs    map[string]int // failures to serve before succeeding
	calls   int
}

func (f *fakeWeb) Search(_ context.Context, query string, _ int) ([]websearch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if n := f.errs[query]; n > 0 {
		f.errs[query] = n - 1
		return nil, fmt.Errorf("transient failure for %q", query)
	}
	return f.results[query], nil
}

type fakeSink struct {
	mu      sync.Mutex
	updates map[string][]StatusUpdate
}

func (f *fakeSink) NodeStatus(path string, u StatusUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = make(map[string][]StatusUpdate)
	}
	f.updates[path] = append(f.updates[path], u)
}

func (f *fakeSink) last(path string) StatusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	us := f.updates[path]
	if len(us) == 0 {
		return StatusUpdate{}
	}
	return us[len(us)-1]
}

func retrievalCfg() config.RetrievalConfig {
	return config.RetrievalConfig{
		MaxIterations:       3,
		MaxWorkers:          2,
		WebConcurrency:      2,
		KBConcurrency:       1,
		SimilarityThreshold: 0.7,
		MaxRetries:          3,
		RetryDelay:          time.Millisecond,
	}
}

func singleLeafTree(title string) *outline.Tree {
	return outline.New(&outline.Node{
		Title: "Topic", Level: 1, Summary: "s",
		Children: []*outline.Node{
			{Title: title, Level: 2, Summary: "about " + title},
		},
	})
}

func newController(provider llm.Provider, web websearch.Searcher, sink ProgressSink) *Controller {
	cfg := retrievalCfg()
	return &Controller{
		LLM:      provider,
		Executor: &SearchExecutor{Web: web, LLM: provider, Cfg: cfg},
		Cfg:      cfg,
		Sink:     sink,
		Skip:     outline.IsIntroOrConclusion,
	}
}

func TestControllerTwoIterationLoop(t *testing.T) {
	t.Parallel()
	provider := &fakeLLM{evalResponses: []string{`{"queries": ["q2"]}`}}
	web := &fakeWeb{results: map[string][]websearch.Result{
		"q1": {{Title: "A", URL: "https://a", Content: "alpha content"}},
		"q2": {{Title: "B", URL: "https://b", Content: "beta content"}},
	}}
	sink := &fakeSink{}
	c := newController(provider, web, sink)
	tree := singleLeafTree("Section")

	if err := c.Run(context.Background(), tree); err != nil {
		t.Fatalf("Run: %v", err)
	}
	node := tree.Root.Children[0]
	if node.Content != "updated draft" {
		t.Errorf("node content = %q, want updated draft", node.Content)
	}
	if len(node.References) != 2 {
		t.Fatalf("references = %d, want 2", len(node.References))
	}
	last := sink.last("1")
	if !last.Completed || last.Err != "" {
		t.Errorf("final status = %+v, want completed without error", last)
	}
}

func TestControllerSilentCompleteOnUnparsableEvaluation(t *testing.T) {
	t.Parallel()
	provider := &fakeLLM{evalResponses: []string{"sorry, I cannot answer in the requested format"}}
	web := &fakeWeb{results: map[string][]websearch.Result{
		"q1": {{Title: "A", URL: "https://a", Content: "alpha content"}},
	}}
	sink := &fakeSink{}
	c := newController(provider, web, sink)
	tree := singleLeafTree("Section")

	if err := c.Run(context.Background(), tree); err != nil {
		t.Fatalf("Run: %v", err)
	}
	last := sink.last("1")
	if !last.Completed || last.Err != "" {
		t.Errorf("final status = %+v, want silent completion", last)
	}
	if got := tree.Root.Children[0].Content; got != "updated draft" {
		t.Errorf("node content = %q, want draft from first iteration", got)
	}
	// no second search round happened
	if web.calls != 1 {
		t.Errorf("web calls = %d, want 1", web.calls)
	}
}

func TestControllerFallsBackToTitleQueryOnUnparsableQueries(t *testing.T) {
	t.Parallel()
	provider := &fakeLLM{queryResponse: "some ideas for searching, none of them JSON"}
	web := &fakeWeb{results: map[string][]websearch.Result{
		"Section": {{Title: "A", URL: "https://a", Content: "alpha content"}},
	}}
	sink := &fakeSink{}
	c := newController(provider, web, sink)
	tree := singleLeafTree("Section")

	if err := c.Run(context.Background(), tree); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if web.calls != 1 {
		t.Errorf("web calls = %d, want 1 (title used as the query)", web.calls)
	}
	if got := tree.Root.Children[0].Content; got != "updated draft" {
		t.Errorf("node content = %q, want draft built from the title query", got)
	}
	last := sink.last("1")
	if !last.Completed || last.Err != "" {
		t.Errorf("final status = %+v, want completed without error", last)
	}
}

func TestControllerResetsStaleNodeState(t *testing.T) {
	t.Parallel()
	provider := &fakeLLM{}
	web := &fakeWeb{results: map[string][]websearch.Result{
		"q1": {{Title: "A", URL: "https://a", Content: "alpha content"}},
	}}
	c := newController(provider, web, &fakeSink{})
	tree := singleLeafTree("Section")
	node := tree.Root.Children[0]
	node.Content = "stale draft from an edited outline"
	node.References = []outline.Reference{{Key: "web_stale1", Source: "web", Title: "Old"}}

	if err := c.Run(context.Background(), tree); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if node.Content != "updated draft" {
		t.Errorf("node content = %q, want a fresh draft", node.Content)
	}
	if len(node.References) != 1 {
		t.Fatalf("references = %d, want only the retrieved one", len(node.References))
	}
	if node.References[0].Key == "web_stale1" {
		t.Error("stale reference survived retrieval")
	}
}

func TestControllerContinuesOnBareArrayEvaluation(t *testing.T) {
	t.Parallel()
	provider := &fakeLLM{evalResponses: []string{`["q2"]`}}
	web := &fakeWeb{results: map[string][]websearch.Result{
		"q1": {{Title: "A", URL: "https://a", Content: "alpha content"}},
		"q2": {{Title: "B", URL: "https://b", Content: "beta content"}},
	}}
	sink := &fakeSink{}
	c := newController(provider, web, sink)
	tree := singleLeafTree("Section")

	if err := c.Run(context.Background(), tree); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if web.calls != 2 {
		t.Errorf("web calls = %d, want 2 (bare array accepted as continuation)", web.calls)
	}
	if got := len(tree.Root.Children[0].References); got != 2 {
		t.Errorf("references = %d, want 2", got)
	}
}

func TestControllerStopsAtIterationBudget(t *testing.T) {
	t.Parallel()
	// evaluation always asks for one more distinct query
	provider := &fakeLLM{evalResponses: []string{
		`{"queries": ["q2"]}`, `{"queries": ["q3"]}`, `{"queries": ["q4"]}`,
	}}
	web := &fakeWeb{results: map[string][]websearch.Result{
		"q1": {{Title: "A", URL: "https://a", Content: "alpha"}},
		"q2": {{Title: "B", URL: "https://b", Content: "beta"}},
		"q3": {{Title: "C", URL: "https://c", Content: "gamma"}},
		"q4": {{Title: "D", URL: "https://d", Content: "delta"}},
	}}
	sink := &fakeSink{}
	c := newController(provider, web, sink)
	tree := singleLeafTree("Section")

	if err := c.Run(context.Background(), tree); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// MaxIterations 3 bounds search rounds even though evaluations keep asking
	if web.calls != 3 {
		t.Errorf("web calls = %d, want 3 (iteration budget)", web.calls)
	}
	if !sink.last("1").Completed {
		t.Error("node not marked completed at budget")
	}
}

func TestControllerFailureIsolatedPerNode(t *testing.T) {
	t.Parallel()
	// the draft prompt embeds the section title, so failing on one title
	// breaks exactly one node
	provider := &fakeLLM{failOn: `"Broken Section"`}
	web := &fakeWeb{results: map[string][]websearch.Result{
		"q1": {{Title: "A", URL: "https://a", Content: "alpha content"}},
	}}
	sink := &fakeSink{}
	c := newController(provider, web, sink)
	tree := outline.New(&outline.Node{
		Title: "Topic", Level: 1, Summary: "s",
		Children: []*outline.Node{
			{Title: "Broken Section", Level: 2, Summary: "fails"},
			{Title: "Healthy Section", Level: 2, Summary: "works"},
		},
	})

	if err := c.Run(context.Background(), tree); err != nil {
		t.Fatalf("Run: %v", err)
	}
	broken := sink.last("1")
	if broken.Err == "" || !broken.Completed {
		t.Errorf("broken node status = %+v, want recorded error", broken)
	}
	if got := tree.Root.Children[0].Content; got != "" {
		t.Errorf("broken node content = %q, want empty", got)
	}
	healthy := sink.last("2")
	if healthy.Err != "" || tree.Root.Children[1].Content != "updated draft" {
		t.Errorf("healthy node affected: status=%+v content=%q", healthy, tree.Root.Children[1].Content)
	}
}

func TestControllerSkipsIntroAndConclusionLeaves(t *testing.T) {
	t.Parallel()
	provider := &fakeLLM{}
	web := &fakeWeb{results: map[string][]websearch.Result{
		"q1": {{Title: "A", URL: "https://a", Content: "alpha"}},
	}}
	sink := &fakeSink{}
	c := newController(provider, web, sink)
	tree := outline.New(&outline.Node{
		Title: "Topic", Level: 1, Summary: "s",
		Children: []*outline.Node{
			{Title: "Introduction", Level: 2, Summary: "intro"},
			{Title: "Body Section", Level: 2, Summary: "body"},
			{Title: "Conclusion", Level: 2, Summary: "outro"},
		},
	})
	if err := c.Run(context.Background(), tree); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := sink.updates["1"]; ok {
		t.Error("introduction leaf was retrieved, want skipped")
	}
	if _, ok := sink.updates["3"]; ok {
		t.Error("conclusion leaf was retrieved, want skipped")
	}
	if tree.Root.Children[1].Content != "updated draft" {
		t.Errorf("body section content = %q", tree.Root.Children[1].Content)
	}
}

func TestPreviewCutsOnRuneBoundary(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("界", 10)
	got := preview(s, 5)
	if !utf8.ValidString(got) {
		t.Fatalf("preview produced invalid UTF-8: %q", got)
	}
	if got != "界"+"…" {
		t.Errorf("preview = %q, want one full rune and the ellipsis", got)
	}
}
