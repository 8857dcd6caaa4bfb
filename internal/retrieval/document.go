package retrieval

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Sisicca/EditorialAgents/internal/kb"
	"github.com/Sisicca/EditorialAgents/internal/outline"
	"github.com/Sisicca/EditorialAgents/internal/websearch"
)

// SourceType tells where a document came from and decides its citation
// format.
type SourceType string

const (
	SourceWeb       SourceType = "web"
	SourceKB        SourceType = "kb"
	SourceGenerated SourceType = "generated"
)

// Document is one piece of retrieved evidence. CitationKey is stable for a
// given identity, so the same page found twice collapses to one reference.
// Query records the search string that surfaced the document; it is empty
// for synthesized fallback documents.
type Document struct {
	ID          string
	Source      SourceType
	Title       string
	Content     string
	Query       string
	URL         string
	File        string
	Author      string
	Page        int
	Year        int
	Score       float64
	CitationKey string
}

// CitationKey derives the short reference key for an identity: the first
// six hex chars of its md5, prefixed by source.
func CitationKey(source SourceType, id string) string {
	sum := md5.Sum([]byte(id))
	short := hex.EncodeToString(sum[:])[:6]
	switch source {
	case SourceWeb:
		return "web_" + short
	case SourceKB:
		return "kb_" + short
	default:
		return "gen_" + short
	}
}

// FromWebResult adapts a web search hit. The URL is the identity; hits
// without a URL fall back to the title.
func FromWebResult(r websearch.Result) Document {
	id := r.URL
	if id == "" {
		id = r.Title
	}
	return Document{
		ID:          id,
		Source:      SourceWeb,
		Title:       r.Title,
		Content:     r.Content,
		URL:         r.URL,
		Score:       r.Score,
		CitationKey: CitationKey(SourceWeb, id),
	}
}

// FromKBHit adapts a knowledge-base hit. Identity is file plus page, so two
// chunks of the same page share a citation.
func FromKBHit(h kb.Hit) Document {
	id := fmt.Sprintf("%s:%d", h.Source, h.Page)
	return Document{
		ID:          id,
		Source:      SourceKB,
		Title:       h.Title,
		Content:     h.Content,
		File:        h.Source,
		Page:        h.Page,
		Score:       h.Score,
		CitationKey: CitationKey(SourceKB, id),
	}
}

// Generated builds the fallback document used when every search lane came
// back empty for a node.
func Generated(nodeTitle, content string) Document {
	id := "generated:" + nodeTitle
	return Document{
		ID:          id,
		Source:      SourceGenerated,
		Title:       nodeTitle,
		Content:     content,
		CitationKey: CitationKey(SourceGenerated, id),
	}
}

// Reference converts the document into the citation entry stored on a node.
func (d Document) Reference() outline.Reference {
	return outline.Reference{
		Key:    d.CitationKey,
		Source: string(d.Source),
		Title:  d.Title,
		URL:    d.URL,
		File:   d.File,
		Author: d.Author,
		Year:   d.Year,
		Page:   d.Page,
	}
}

// FormatForPrompt renders documents as citation-keyed evidence blocks for
// the refinement and evaluation prompts.
func FormatForPrompt(docs []Document) string {
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "[%s] source: %s\n", d.CitationKey, d.Source)
		if d.Title != "" {
			fmt.Fprintf(&b, "title: %s\n", d.Title)
		}
		switch d.Source {
		case SourceWeb:
			if d.URL != "" {
				fmt.Fprintf(&b, "url: %s\n", d.URL)
			}
		case SourceKB:
			fmt.Fprintf(&b, "file: %s (page %d)\n", d.File, d.Page)
		}
		fmt.Fprintf(&b, "--- content ---\n%s\n\n", strings.TrimSpace(d.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

// MergeReferences appends each document's citation to refs, keeping the
// first entry per key.
func MergeReferences(refs []outline.Reference, docs []Document) []outline.Reference {
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		seen[r.Key] = true
	}
	for _, d := range docs {
		if seen[d.CitationKey] {
			continue
		}
		seen[d.CitationKey] = true
		refs = append(refs, d.Reference())
	}
	return refs
}
