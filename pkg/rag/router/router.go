// Package router decides, with a single model call, whether a query
// needs knowledge-base retrieval or can be answered directly.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"ai-deptdocs-be/pkg/llm"
	"ai-deptdocs-be/pkg/rag/conversation"
)

const (
	ActionRAG   = "rag"
	ActionNoRAG = "no_rag"
)

// Decision is the router's verdict for one query.
type Decision struct {
	Action string

	// ExpandedQuery is the self-contained question written into the
	// generation prompt. RAG only.
	ExpandedQuery string

	// SearchQuery is the keyword form sent to vector search. RAG only.
	SearchQuery string

	// Clarification names the missing detail the user must supply.
	// NO_RAG only, empty when the query can be answered directly.
	Clarification string
}

// ParseError reports a routing reply that failed strict schema
// validation. The caller decides the fallback; the router never retries.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("router: unparseable routing reply: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var jsonBlockPattern = regexp.MustCompile(`(?s)\{.*\}`)

const routingInstructions = `
TUGAS: Tentukan apakah pertanyaan butuh RAG (pencarian knowledge base) atau tidak.

ATURAN:

ACTION "rag" - Gunakan jika pertanyaan tentang domain akademik/kampus
(informasi spesifik yang membutuhkan data dari knowledge base)
PENTING: Gunakan RAG bahkan jika pertanyaan menggunakan objek umum (misal: "berapa bisa diambil?", "kapan deadline?")
Sistem RAG akan mencari dokumen yang relevan berdasarkan konteks.

ACTION "no_rag" - HANYA gunakan untuk:
- Sapaan dan basa-basi (halo, hi, terima kasih)
- Chitchat umum yang tidak ada hubungannya dengan akademik
- Pertanyaan yang BENAR-BENAR tidak bisa dijawab tanpa info esensial yang hilang

KAPAN MINTA KLARIFIKASI:
- HANYA jika pertanyaan benar-benar tidak ada konteks sama sekali dan tidak mungkin dicari
- Contoh butuh klarifikasi: "bagaimana caranya?" (cara apa? tidak ada hint)
- Contoh TIDAK butuh klarifikasi: "berapa bisa diambil?" (bisa dicari dengan keyword "maksimal diambil")

UNTUK ACTION "rag", buat 2 versi query:

1. expanded_query: Pertanyaan yang lebih jelas dengan konteks dari percakapan (jika ada)
   PENTING: JANGAN tambahkan nama departemen di akhir query
   Contoh: "kalau untuk S2?" -> "Apa persyaratan untuk program Magister S2?"

2. rag_optimized_query: Kata kunci untuk pencarian (hapus kata tanya, expand singkatan)
   Contoh: "Berapa SKS yang bisa diambil?" -> "SKS maksimal diambil"
   Contoh: "matkul apa yang wajib?" -> "mata kuliah wajib"

FORMAT OUTPUT: JSON
{
  "action": "rag" | "no_rag",
  "expanded_query": "..." (jika rag),
  "rag_optimized_query": "..." (jika rag),
  "what_to_clarify": "..." (jika no_rag dan butuh klarifikasi)
}

CONTOH:
Query: "kalau untuk S2?"
Context: Sebelumnya tanya S1
Output: {"action": "rag", "expanded_query": "Apa persyaratan untuk program Magister S2?", "rag_optimized_query": "persyaratan Magister S2"}

Query: "halo"
Output: {"action": "no_rag"}

Query: "bagaimana caranya?"
Context: Tidak ada percakapan sebelumnya
Output: {"action": "no_rag", "what_to_clarify": "Cara untuk apa yang dimaksud?"}
`

// Router issues exactly one routing call per query and validates the
// structured reply strictly. The domain prompt and rewrite policy are
// injected at construction.
type Router struct {
	provider     llm.LLMProvider
	systemPrompt string
	rewrite      RewritePolicy
	logger       *log.Logger
}

func NewRouter(provider llm.LLMProvider, systemPrompt string, rewrite RewritePolicy, logger *log.Logger) *Router {
	return &Router{
		provider:     provider,
		systemPrompt: systemPrompt,
		rewrite:      rewrite,
		logger:       logger,
	}
}

// Decide routes query given the trimmed conversation history. A
// malformed or incomplete reply returns *ParseError; the fallback
// behavior belongs to the caller.
func (r *Router) Decide(ctx context.Context, query string, history []conversation.Turn) (*Decision, error) {
	messages := []llm.Message{
		{Role: "system", Content: r.systemPrompt + "\n\n" + routingInstructions},
		{Role: "user", Content: buildUserMessage(query, history)},
	}

	raw, err := r.provider.Chat(ctx, messages, llm.WithTemperature(0.1))
	if err != nil {
		return nil, fmt.Errorf("router: routing call failed: %w", err)
	}

	if r.logger != nil {
		r.logger.Printf("[ROUTER] Raw reply: %s", truncate(raw, 200))
	}

	decision, err := parseDecision(raw)
	if err != nil {
		return nil, err
	}

	if decision.Action == ActionRAG {
		decision.SearchQuery = r.rewrite.Apply(decision.SearchQuery)
	}
	return decision, nil
}

func buildUserMessage(query string, history []conversation.Turn) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Percakapan Sebelumnya:\n")
		for _, turn := range history {
			if turn.Role == conversation.RoleSystem {
				continue
			}
			label := "AI"
			if turn.Role == conversation.RoleHuman {
				label = "Human"
			}
			fmt.Fprintf(&b, "- %s: %s\n", label, turn.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Query Saat Ini: %q\n", query)
	return b.String()
}

// routerReply mirrors the JSON contract in the routing instructions.
type routerReply struct {
	Action        string `json:"action"`
	ExpandedQuery string `json:"expanded_query"`
	SearchQuery   string `json:"rag_optimized_query"`
	Clarification string `json:"what_to_clarify"`
}

func parseDecision(raw string) (*Decision, error) {
	block := jsonBlockPattern.FindString(raw)
	if block == "" {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("no JSON object in reply")}
	}

	var reply routerReply
	if err := json.Unmarshal([]byte(block), &reply); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	switch reply.Action {
	case ActionRAG:
		if strings.TrimSpace(reply.ExpandedQuery) == "" || strings.TrimSpace(reply.SearchQuery) == "" {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("rag action missing expanded_query or rag_optimized_query")}
		}
		return &Decision{
			Action:        ActionRAG,
			ExpandedQuery: reply.ExpandedQuery,
			SearchQuery:   reply.SearchQuery,
		}, nil
	case ActionNoRAG:
		return &Decision{
			Action:        ActionNoRAG,
			Clarification: strings.TrimSpace(reply.Clarification),
		}, nil
	default:
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("unknown action %q", reply.Action)}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
