package retrieval

import "fmt"

// retrievalComplete is the sentinel the evaluation prompt asks the model to
// emit once a section needs no further searching.
const retrievalComplete = "[RETRIEVAL_COMPLETE]"

func queryGenerationPrompt(topic, structure, title, summary string) string {
	return fmt.Sprintf(`You are researching one section of an article.

Article topic: %s

Article structure:
%s

Section to research: %s
Section focus: %s

Produce 3 to 5 precise search queries that would surface evidence for this
section. Avoid queries that only restate the article topic. Respond with a
JSON array of strings and nothing else, for example:
["query one", "query two"]`, topic, structure, title, summary)
}

func refineDocumentPrompt(title, summary, content string) string {
	return fmt.Sprintf(`Extract the material from the source text below that is
relevant to the article section "%s" (%s). Keep facts, figures and named
entities; drop navigation text, ads and unrelated passages. Respond with the
extracted material only.

Source text:
%s`, title, summary, content)
}

func updateContentPrompt(title, summary, current, evidence string) string {
	return fmt.Sprintf(`You are writing the article section "%s".
Section focus: %s

Current draft (may be empty):
%s

New evidence, each block tagged with its citation key:
%s

Rewrite the draft so it integrates the new evidence. Cite evidence inline
using the bracketed keys, e.g. [web_a1b2c3]. Respond with the updated
section text only.`, title, summary, current, evidence)
}

func evaluationPrompt(title, summary, content string, usedQueries []string) string {
	queries := ""
	for _, q := range usedQueries {
		queries += "- " + q + "\n"
	}
	return fmt.Sprintf(`You are judging whether the article section "%s" (%s)
has gathered enough evidence.

Current section text:
%s

Queries already used:
%s
If the section is sufficiently supported, respond with exactly %s.
Otherwise respond with a JSON object of the form
{"queries": ["new query", ...]} proposing up to 3 new queries that do not
repeat the ones above.`, title, summary, content, queries, retrievalComplete)
}

func fallbackContentPrompt(topic, title, summary string) string {
	return fmt.Sprintf(`No external sources could be retrieved for the article
section "%s" (topic: %s). Write a short factual draft for this section from
general knowledge. Section focus: %s. Respond with the draft only.`, title, topic, summary)
}
