package kb

import "strings"

var separators = []string{"\n\n", "\n", ". ", " "}

// SplitText breaks text into chunks of roughly size characters, preferring
// paragraph, line, sentence and word boundaries in that order, with a
// character overlap carried between adjacent chunks.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	pieces := splitRecursive(text, size, 0)
	return mergeWithOverlap(pieces, size, overlap)
}

func splitRecursive(text string, size, sepIdx int) []string {
	if len(text) <= size {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		// no boundary available, hard cut
		var out []string
		for len(text) > size {
			out = append(out, text[:size])
			text = text[size:]
		}
		if text != "" {
			out = append(out, text)
		}
		return out
	}
	parts := strings.SplitAfter(text, separators[sepIdx])
	var out []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if len(p) > size {
			out = append(out, splitRecursive(p, size, sepIdx+1)...)
		} else {
			out = append(out, p)
		}
	}
	return out
}

func mergeWithOverlap(pieces []string, size, overlap int) []string {
	var out []string
	cur := ""
	hasNew := false
	for _, p := range pieces {
		if hasNew && len(cur)+len(p) > size {
			chunk := strings.TrimSpace(cur)
			out = append(out, chunk)
			cur = ""
			if overlap > 0 && len(chunk) > overlap {
				cur = chunk[len(chunk)-overlap:]
			}
			hasNew = false
		}
		cur += p
		hasNew = true
	}
	if hasNew {
		if c := strings.TrimSpace(cur); c != "" {
			out = append(out, c)
		}
	}
	return out
}
