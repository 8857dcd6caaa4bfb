package outline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MaxLevel bounds outline depth. Level 1 is the article root.
const MaxLevel = 4

// Reference is a citation attached to a node. Source decides which fields
// are meaningful: web references carry URL, knowledge-base references carry
// File/Page/Author/Year.
type Reference struct {
	Key    string `json:"key"`
	Source string `json:"source"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
	File   string `json:"file,omitempty"`
	Author string `json:"author,omitempty"`
	Year   int    `json:"year,omitempty"`
	Page   int    `json:"page,omitempty"`
}

// Node is one outline section. Content and References are filled in by the
// retrieval and composition stages; the planner only produces Title, Level,
// Summary and Children.
type Node struct {
	Title      string      `json:"title"`
	Level      int         `json:"level"`
	Summary    string      `json:"summary"`
	Children   []*Node     `json:"children,omitempty"`
	Content    string      `json:"content,omitempty"`
	References []Reference `json:"references,omitempty"`
}

func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Tree wraps the outline root. The tree shape is fixed after planning; only
// Content and References of individual nodes change afterwards, and each
// node has exactly one writer at any time.
type Tree struct {
	Root *Node `json:"root"`
}

func New(root *Node) *Tree { return &Tree{Root: root} }

// FromJSON builds a validated tree from planner or API payloads.
func FromJSON(data []byte) (*Tree, error) {
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding outline: %w", err)
	}
	t := New(&root)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ValidationError carries every violation found in one pass, each prefixed
// with the dotted path of the offending node.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid outline (%d violations): %s", len(e.Violations), strings.Join(e.Violations, "; "))
}

// Validate walks the whole tree and reports all structural violations at
// once rather than stopping at the first.
func (t *Tree) Validate() error {
	var violations []string
	if t == nil || t.Root == nil {
		return &ValidationError{Violations: []string{"outline has no root"}}
	}
	if t.Root.Level != 1 {
		violations = append(violations, fmt.Sprintf("node 0: root level must be 1, got %d", t.Root.Level))
	}
	var walk func(path string, n *Node)
	walk = func(path string, n *Node) {
		if strings.TrimSpace(n.Title) == "" {
			violations = append(violations, fmt.Sprintf("node %s: empty title", path))
		}
		if n.Level > MaxLevel {
			violations = append(violations, fmt.Sprintf("node %s: level %d exceeds max %d", path, n.Level, MaxLevel))
		}
		for i, c := range n.Children {
			childPath := childPath(path, i)
			if c == nil {
				violations = append(violations, fmt.Sprintf("node %s: nil child", childPath))
				continue
			}
			if c.Level != n.Level+1 {
				violations = append(violations, fmt.Sprintf("node %s: level %d should be %d", childPath, c.Level, n.Level+1))
			}
			walk(childPath, c)
		}
	}
	walk("0", t.Root)
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func childPath(parent string, i int) string {
	if parent == "0" {
		return strconv.Itoa(i + 1)
	}
	return parent + "." + strconv.Itoa(i+1)
}

// Walk visits every node pre-order with its dotted path. The root path is
// "0"; its children are "1", "2", ...; children of "1" are "1.1", "1.2".
func (t *Tree) Walk(fn func(path string, n *Node)) {
	if t == nil || t.Root == nil {
		return
	}
	var walk func(path string, n *Node)
	walk = func(path string, n *Node) {
		fn(path, n)
		for i, c := range n.Children {
			if c != nil {
				walk(childPath(path, i), c)
			}
		}
	}
	walk("0", t.Root)
}

// AllNodes returns every node in pre-order.
func (t *Tree) AllNodes() []*Node {
	var out []*Node
	t.Walk(func(_ string, n *Node) { out = append(out, n) })
	return out
}

// Leaves returns all leaf nodes in pre-order.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	t.Walk(func(_ string, n *Node) {
		if n.IsLeaf() {
			out = append(out, n)
		}
	})
	return out
}

// Path returns the dotted path of n, or "" when n is not in the tree.
func (t *Tree) Path(n *Node) string {
	found := ""
	t.Walk(func(path string, cur *Node) {
		if cur == n && found == "" {
			found = path
		}
	})
	return found
}

// NodeByPath resolves a dotted path produced by Walk.
func (t *Tree) NodeByPath(path string) *Node {
	if t == nil || t.Root == nil {
		return nil
	}
	if path == "0" {
		return t.Root
	}
	n := t.Root
	for _, part := range strings.Split(path, ".") {
		i, err := strconv.Atoi(part)
		if err != nil || i < 1 || i > len(n.Children) {
			return nil
		}
		n = n.Children[i-1]
	}
	return n
}

// MaxLeafLevel returns the deepest level among leaves. A bare root counts
// as level 1.
func (t *Tree) MaxLeafLevel() int {
	max := 0
	for _, n := range t.Leaves() {
		if n.Level > max {
			max = n.Level
		}
	}
	return max
}

// NodesAtLevel collects nodes at exactly the given level. Descent stops at
// the target level, so deeper subtrees are not scanned.
func (t *Tree) NodesAtLevel(level int) []*Node {
	if t == nil || t.Root == nil {
		return nil
	}
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Level == level {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			if c != nil {
				walk(c)
			}
		}
	}
	walk(t.Root)
	return out
}

// PaperStructure renders the outline for prompts: the root title in book
// brackets, then each section as a numbered "1.2. Title: Summary" line.
func (t *Tree) PaperStructure() string {
	if t == nil || t.Root == nil {
		return ""
	}
	var b strings.Builder
	t.Walk(func(path string, n *Node) {
		if path == "0" {
			fmt.Fprintf(&b, "《%s》\n", n.Title)
			if n.Summary != "" {
				fmt.Fprintf(&b, "%s\n", n.Summary)
			}
			return
		}
		fmt.Fprintf(&b, "%s. %s: %s\n", path, n.Title, n.Summary)
	})
	return strings.TrimRight(b.String(), "\n")
}

// Article renders the tree as markdown with heading depth equal to node
// level, followed by each node's content.
func (t *Tree) Article() string {
	if t == nil || t.Root == nil {
		return ""
	}
	var b strings.Builder
	t.Walk(func(_ string, n *Node) {
		fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("#", n.Level), n.Title)
		if strings.TrimSpace(n.Content) != "" {
			fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(n.Content))
		}
	})
	return strings.TrimRight(b.String(), "\n") + "\n"
}
