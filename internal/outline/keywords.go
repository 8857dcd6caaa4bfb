package outline

import "strings"

var introTitleKeywords = []string{"introduction", "preface", "foreword", "overview", "background"}

var conclusionTitleKeywords = []string{"conclusion", "summary", "closing", "final thoughts", "outlook"}

// IsIntroTitle reports whether a section title names an introduction-style
// section. Such sections are written from the finished body, not from
// retrieved evidence.
func IsIntroTitle(title string) bool {
	return containsKeyword(title, introTitleKeywords)
}

// IsConclusionTitle reports whether a section title names a
// conclusion-style section.
func IsConclusionTitle(title string) bool {
	return containsKeyword(title, conclusionTitleKeywords)
}

// IsIntroOrConclusion is the retrieval skip predicate.
func IsIntroOrConclusion(title string) bool {
	return IsIntroTitle(title) || IsConclusionTitle(title)
}

func containsKeyword(title string, keywords []string) bool {
	t := strings.ToLower(title)
	for _, k := range keywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}
