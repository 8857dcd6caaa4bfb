package retrieval

import "strings"

// Deduplicator filters retrieved documents against everything a node has
// already accepted. Matching is order dependent within a batch: the first
// occurrence wins and later near-copies are dropped.
type Deduplicator struct {
	// Threshold is the Jaccard similarity above which same-titled or
	// untitled documents count as duplicates.
	Threshold float64
}

// Filter returns the documents from batch not already represented in
// history, in input order. Accepted documents immediately join the
// comparison set so in-batch duplicates also collapse.
func (d Deduplicator) Filter(history, batch []Document) []Document {
	seen := make([]Document, len(history), len(history)+len(batch))
	copy(seen, history)
	var fresh []Document
	for _, doc := range batch {
		if d.isDuplicate(doc, seen) {
			continue
		}
		fresh = append(fresh, doc)
		seen = append(seen, doc)
	}
	return fresh
}

func (d Deduplicator) isDuplicate(doc Document, seen []Document) bool {
	if doc.ID != "" {
		for _, s := range seen {
			if s.ID == doc.ID {
				return true
			}
		}
		if doc.Title != "" {
			for _, s := range seen {
				if s.Title == doc.Title && jaccard(doc.Content, s.Content) > d.Threshold {
					return true
				}
			}
		}
		return false
	}
	// no identity to match on, compare content against the whole history
	for _, s := range seen {
		if jaccard(doc.Content, s.Content) > d.Threshold {
			return true
		}
	}
	return false
}

// jaccard measures token overlap between two texts over lowercase
// whitespace tokens. Either side empty means similarity zero.
func jaccard(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		out[tok] = true
	}
	return out
}
