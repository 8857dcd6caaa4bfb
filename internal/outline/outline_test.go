package outline

import (
	"strings"
	"testing"
)

func sampleTree() *Tree {
	return New(&Node{
		Title: "Edge Computing", Level: 1, Summary: "An overview of edge computing.",
		Children: []*Node{
			{Title: "Introduction", Level: 2, Summary: "Why edge computing matters."},
			{Title: "Architectures", Level: 2, Summary: "Common deployment shapes.", Children: []*Node{
				{Title: "Cloudlets", Level: 3, Summary: "Small-scale datacenters."},
				{Title: "Fog Nodes", Level: 3, Summary: "Hierarchical intermediaries."},
			}},
			{Title: "Conclusion", Level: 2, Summary: "Closing remarks."},
		},
	})
}

func TestValidateOK(t *testing.T) {
	t.Parallel()
	if err := sampleTree().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	t.Parallel()
	tr := New(&Node{
		Title: "Root", Level: 2,
		Children: []*Node{
			{Title: "", Level: 3},
			{Title: "Deep", Level: 5, Children: []*Node{
				{Title: "Deeper", Level: 6},
			}},
		},
	})
	err := tr.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	// root level, empty title, level jump 2->5, level 5 > max, level 6 > max.
	if len(ve.Violations) != 5 {
		t.Fatalf("violations = %d (%v), want 5", len(ve.Violations), ve.Violations)
	}
	joined := strings.Join(ve.Violations, "\n")
	for _, want := range []string{"node 0:", "node 1: empty title", "node 2:", "node 2.1:"} {
		if !strings.Contains(joined, want) {
			t.Errorf("violations missing %q:\n%s", want, joined)
		}
	}
}

func TestLeavesAndMaxLeafLevel(t *testing.T) {
	t.Parallel()
	tr := sampleTree()
	leaves := tr.Leaves()
	if len(leaves) != 4 {
		t.Fatalf("Leaves() = %d nodes, want 4", len(leaves))
	}
	if got := leaves[1].Title; got != "Cloudlets" {
		t.Errorf("leaves[1].Title = %q, want Cloudlets (pre-order)", got)
	}
	if got := tr.MaxLeafLevel(); got != 3 {
		t.Errorf("MaxLeafLevel() = %d, want 3", got)
	}
}

func TestNodesAtLevelStopsDescent(t *testing.T) {
	t.Parallel()
	tr := sampleTree()
	got := tr.NodesAtLevel(2)
	if len(got) != 3 {
		t.Fatalf("NodesAtLevel(2) = %d nodes, want 3", len(got))
	}
	for _, n := range got {
		if n.Level != 2 {
			t.Errorf("node %q level = %d, want 2", n.Title, n.Level)
		}
	}
	if got := tr.NodesAtLevel(3); len(got) != 2 {
		t.Errorf("NodesAtLevel(3) = %d nodes, want 2", len(got))
	}
}

func TestPathRoundTrip(t *testing.T) {
	t.Parallel()
	tr := sampleTree()
	fog := tr.Root.Children[1].Children[1]
	path := tr.Path(fog)
	if path != "2.2" {
		t.Fatalf("Path(fog) = %q, want 2.2", path)
	}
	if got := tr.NodeByPath(path); got != fog {
		t.Errorf("NodeByPath(%q) = %v, want fog node", path, got)
	}
	if got := tr.NodeByPath("7.9"); got != nil {
		t.Errorf("NodeByPath(7.9) = %v, want nil", got)
	}
	if got := tr.NodeByPath("0"); got != tr.Root {
		t.Errorf("NodeByPath(0) = %v, want root", got)
	}
}

func TestPaperStructure(t *testing.T) {
	t.Parallel()
	got := sampleTree().PaperStructure()
	wantLines := []string{
		"《Edge Computing》",
		"1. Introduction: Why edge computing matters.",
		"2. Architectures: Common deployment shapes.",
		"2.1. Cloudlets: Small-scale datacenters.",
		"2.2. Fog Nodes: Hierarchical intermediaries.",
		"3. Conclusion: Closing remarks.",
	}
	for _, line := range wantLines {
		if !strings.Contains(got, line) {
			t.Errorf("PaperStructure() missing %q:\n%s", line, got)
		}
	}
}

func TestArticleHeadings(t *testing.T) {
	t.Parallel()
	tr := sampleTree()
	tr.Root.Children[0].Content = "Edge computing moves compute near the data."
	got := tr.Article()
	if !strings.Contains(got, "# Edge Computing\n") {
		t.Errorf("Article() missing root heading:\n%s", got)
	}
	if !strings.Contains(got, "## Introduction\n\nEdge computing moves compute near the data.") {
		t.Errorf("Article() missing leaf content under heading:\n%s", got)
	}
	if !strings.Contains(got, "### Cloudlets\n") {
		t.Errorf("Article() missing level-3 heading:\n%s", got)
	}
}

func TestFromJSONValidates(t *testing.T) {
	t.Parallel()
	good := `{"title":"T","level":1,"summary":"s","children":[{"title":"A","level":2,"summary":"a"}]}`
	tr, err := FromJSON([]byte(good))
	if err != nil {
		t.Fatalf("FromJSON(good) error: %v", err)
	}
	if tr.Root.Children[0].Title != "A" {
		t.Errorf("child title = %q, want A", tr.Root.Children[0].Title)
	}
	bad := `{"title":"T","level":1,"children":[{"title":"A","level":4}]}`
	if _, err := FromJSON([]byte(bad)); err == nil {
		t.Error("FromJSON(bad) = nil error, want validation error")
	}
}
