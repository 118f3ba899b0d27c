// Package prompt builds the final instruction text for each pipeline
// branch. Every function here is pure: same inputs, same output, no I/O.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// The RAG prompt wraps the user's question as `Query: ${question}$` so the
// conversation store can later recover the clean question for history.
// The wrapper never reaches the user-visible stream. The pattern anchors
// on the `Query:` label so dollar signs inside ordinary user text are
// left alone.
var queryWrapperPattern = regexp.MustCompile(`Query:\s*\$(.*?)\$`)

// BuildRAGPrompt embeds the retrieved context and the expanded query.
// An empty context falls back to an answer-from-general-knowledge
// instruction with the standard apology line.
func BuildRAGPrompt(expandedQuery, context string) string {
	if strings.TrimSpace(context) == "" {
		return fmt.Sprintf(`Query: $%s$

PENTING: Tidak ada konteks yang relevan ditemukan dengan kueri. Jawab dengan:
Jika dapat dijawab dengan general knowledge maka bisa jawab secara general.
Jika tidak: "Mohon maaf, data tidak ditemukan. Silakan hubungi administrasi departemen 🙏"
`, expandedQuery)
	}

	return fmt.Sprintf(`
_______________KONTEKS RAG________________________________
Konten: %s
_______________KONTEKS RAG________________________________
Query: $%s$
`, context, expandedQuery)
}

// BuildNoRAGPrompt handles the direct branch. With a clarification topic
// the prompt instructs the model to ask a friendly clarifying question;
// without one the original query passes through untouched.
func BuildNoRAGPrompt(query, clarification string) string {
	if strings.TrimSpace(clarification) == "" {
		return query
	}

	return fmt.Sprintf(`Query: $%s$
Ini adalah permintaan klarifikasi untuk membantu user memperjelas maksud mereka.
Apa yang perlu diklarifikasi: %s
Berikan respons klarifikasi yang ramah dan membantu sesuai yang diminta.
`, query, clarification)
}

// BuildRawPrompt is the passthrough form used when no wrapping is wanted.
func BuildRawPrompt(query string) string {
	return fmt.Sprintf("Query: %s", query)
}

// ExtractQuery recovers the clean question from a wrapped prompt. Content
// without the wrapper is returned unchanged, so it is safe to apply to
// every human message before persisting it.
func ExtractQuery(content string) string {
	match := queryWrapperPattern.FindStringSubmatch(content)
	if match == nil {
		return content
	}
	return strings.TrimSpace(match[1])
}
