package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Sisicca/EditorialAgents/internal/outline"
)

// CompileReferences gathers the citations of every node, keeps the first
// entry per key and returns formatted lines sorted by key.
func CompileReferences(tree *outline.Tree) []string {
	byKey := make(map[string]outline.Reference)
	for _, n := range tree.AllNodes() {
		for _, r := range n.References {
			if _, ok := byKey[r.Key]; !ok {
				byKey[r.Key] = r
			}
		}
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, formatReference(byKey[k]))
	}
	return out
}

func formatReference(r outline.Reference) string {
	switch r.Source {
	case "web":
		return fmt.Sprintf("[%s] %s. %s", r.Key, r.Title, r.URL)
	case "kb":
		var parts []string
		if r.Author != "" {
			parts = append(parts, r.Author+".")
		}
		if r.Year != 0 {
			parts = append(parts, fmt.Sprintf("(%d).", r.Year))
		}
		if r.Title != "" {
			parts = append(parts, r.Title+".")
		}
		if r.File != "" {
			if r.Page > 0 {
				parts = append(parts, fmt.Sprintf("%s (page %d)", r.File, r.Page))
			} else {
				parts = append(parts, r.File)
			}
		}
		return fmt.Sprintf("[%s] %s", r.Key, strings.Join(parts, " "))
	default:
		return fmt.Sprintf("[%s] %s.", r.Key, r.Title)
	}
}

// Assemble renders the final markdown article: body plus a references
// section when any citations exist.
func Assemble(tree *outline.Tree) string {
	article := tree.Article()
	refs := CompileReferences(tree)
	if len(refs) == 0 {
		return article
	}
	var b strings.Builder
	b.WriteString(article)
	b.WriteString("\n## References\n\n")
	for _, line := range refs {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
