// Package relevance judges whether retrieved chunks actually answer the
// query, with a bounded fan-out of model calls behind a memoized cache.
package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"time"

	"ai-deptdocs-be/pkg/llm"
	"ai-deptdocs-be/pkg/store"

	"golang.org/x/sync/errgroup"
)

// Verdict is one model judgement over a (chunk, query) pair.
type Verdict struct {
	Relevant  bool
	Rationale string
}

// Candidate pairs a chunk with the preview text shown to the judge.
type Candidate struct {
	Chunk   store.Chunk
	Content string
}

// Config bounds the evaluator's upstream load.
type Config struct {
	// Workers caps simultaneous in-flight verdict calls.
	Workers int

	// VerdictTimeout bounds a single judgement. A timed-out candidate is
	// excluded, never fatal.
	VerdictTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 12
	}
	if c.VerdictTimeout <= 0 {
		c.VerdictTimeout = 15 * time.Second
	}
	return c
}

type Evaluator struct {
	provider llm.LLMProvider
	policy   AcceptancePolicy
	cache    VerdictCache
	cfg      Config
	logger   *log.Logger
}

func NewEvaluator(provider llm.LLMProvider, policy AcceptancePolicy, cache VerdictCache, cfg Config, logger *log.Logger) *Evaluator {
	return &Evaluator{
		provider: provider,
		policy:   policy,
		cache:    cache,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Filter returns the accepted candidates in their original order.
// Verdict failures for single candidates exclude that candidate and the
// pipeline continues; only full context cancellation stops early.
func (e *Evaluator) Filter(ctx context.Context, query string, cands []Candidate) []Candidate {
	if len(cands) == 0 {
		return nil
	}

	accepted := make([]bool, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, cand := range cands {
		if !e.policy.NeedsVerdict(cand.Chunk.Distance) {
			accepted[i] = e.policy.Accept(cand.Chunk.Distance, nil)
			continue
		}

		i, cand := i, cand
		g.Go(func() error {
			verdict, err := e.verdictFor(gctx, query, cand)
			if err != nil {
				if e.logger != nil {
					e.logger.Printf("[RELEVANCE] Chunk %s excluded, verdict failed: %v", cand.Chunk.ID, err)
				}
				return nil
			}
			accepted[i] = e.policy.Accept(cand.Chunk.Distance, verdict)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Candidate, 0, len(cands))
	for i, ok := range accepted {
		if ok {
			out = append(out, cands[i])
		}
	}
	if e.logger != nil {
		e.logger.Printf("[RELEVANCE] %d/%d candidates accepted", len(out), len(cands))
	}
	return out
}

// verdictFor consults the cache before spending a model call.
func (e *Evaluator) verdictFor(ctx context.Context, query string, cand Candidate) (*Verdict, error) {
	key := CacheKey(cand.Chunk.ID, query)
	if e.cache != nil {
		if relevant, found := e.cache.Get(ctx, key); found {
			return &Verdict{Relevant: relevant, Rationale: "cached"}, nil
		}
	}

	vctx, cancel := context.WithTimeout(ctx, e.cfg.VerdictTimeout)
	defer cancel()

	verdict, err := e.judge(vctx, query, cand.Content)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Set(ctx, key, verdict.Relevant)
	}
	return verdict, nil
}

var verdictJSONPattern = regexp.MustCompile(`(?s)\{.*\}`)

type verdictReply struct {
	Explanation string `json:"explanation"`
	IsRelevant  bool   `json:"is_relevant"`
}

const judgePromptFmt = `Tugas: Tentukan apakah konten berikut relevan dengan pertanyaan.
Konteks: Anda adalah penentu relevansi untuk pipeline RAG, berjalan paralel dengan instance lain.

Konten:
%s

Pertanyaan: %s

Instruksi:
1. Analisis apakah konten SECARA LANGSUNG atau PARSIAL dapat menjawab pertanyaan. Jawaban parsial hanya berlaku untuk pertanyaan komposit yang eksplisit atau pertanyaan yang sangat general.
2. Tulis explanation dulu tanpa bias, lalu tentukan relevan atau tidak berdasarkan explanation tersebut.
3. Untuk pertanyaan tentang dosen secara general, loloskan hanya bagian yang sangat relevan. Tabel dosen bukan tabel professor.

FORMAT OUTPUT: JSON
{
  "explanation": "maksimal 2 kalimat",
  "is_relevant": true atau false
}
PENTING: Kembalikan HANYA objek JSON tanpa teks tambahan.`

func (e *Evaluator) judge(ctx context.Context, query, content string) (*Verdict, error) {
	prompt := fmt.Sprintf(judgePromptFmt, content, query)
	raw, err := e.provider.Generate(ctx, prompt, llm.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("relevance: verdict call failed: %w", err)
	}

	block := verdictJSONPattern.FindString(raw)
	if block == "" {
		return nil, fmt.Errorf("relevance: no JSON object in verdict reply")
	}

	var reply verdictReply
	if err := json.Unmarshal([]byte(block), &reply); err != nil {
		return nil, fmt.Errorf("relevance: unparseable verdict reply: %w", err)
	}
	return &Verdict{Relevant: reply.IsRelevant, Rationale: reply.Explanation}, nil
}
