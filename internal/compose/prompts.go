package compose

import "fmt"

func sectionPrompt(title, summary, children string) string {
	return fmt.Sprintf(`You are writing the article section "%s".
Section focus: %s

The finished subsections are below. Write the section body that introduces
and connects them; do not repeat their text verbatim and do not restate
their headings. Respond with the section body only.

Subsections:
%s`, title, summary, children)
}

func rootPrompt(title, summary, children string) string {
	return fmt.Sprintf(`You are finalizing the article "%s" (%s). Its top-level
sections are below. Write a short framing passage for the whole article
that ties the sections together. Respond with the passage only.

Sections:
%s`, title, summary, children)
}

func introPrompt(topic, sectionTitle, body string) string {
	return fmt.Sprintf(`Write the "%s" section for an article on "%s". Base it
on the finished article body below: state the motivation and preview the
structure without repeating whole passages. Respond with the section text
only.

Article body:
%s`, sectionTitle, topic, body)
}

func conclusionPrompt(topic, sectionTitle, body string) string {
	return fmt.Sprintf(`Write the "%s" section for an article on "%s". Base it
on the finished article body below: distill the main findings and close the
argument without introducing new material. Respond with the section text
only.

Article body:
%s`, sectionTitle, topic, body)
}
