// Package search implements the retrieval search boundary on top of an
// embedding provider and the corpus chunk repository.
package search

import (
	"context"
	"fmt"
	"log"

	"ai-deptdocs-be/pkg/embedding"
	"ai-deptdocs-be/pkg/rag/retrieval"
	"ai-deptdocs-be/pkg/store"
)

// ChunkRepository is the persistence boundary, implemented over pgvector.
type ChunkRepository interface {
	SearchSimilar(ctx context.Context, vector []float32, typeConds, yearConds []string, topK int) ([]store.Chunk, error)
	FindRange(ctx context.Context, sectionID string, start, end int) ([]store.Chunk, error)
}

// VectorSearcher embeds the query and delegates to the repository.
type VectorSearcher struct {
	embedder embedding.EmbeddingProvider
	repo     ChunkRepository
	logger   *log.Logger
}

var _ retrieval.Searcher = &VectorSearcher{}

func NewVectorSearcher(embedder embedding.EmbeddingProvider, repo ChunkRepository, logger *log.Logger) *VectorSearcher {
	return &VectorSearcher{embedder: embedder, repo: repo, logger: logger}
}

func (s *VectorSearcher) Search(ctx context.Context, query string, f retrieval.Filter, topK int) ([]store.Chunk, error) {
	resp, err := s.embedder.Generate(query, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, fmt.Errorf("search: embedding query failed: %w", err)
	}
	vector := embedding.NormalizeVector(resp.Embedding.Values)

	chunks, err := s.repo.SearchSimilar(ctx, vector, f.TypeConditions(), f.YearConditions(), topK)
	if err != nil {
		return nil, fmt.Errorf("search: similarity query failed: %w", err)
	}
	if s.logger != nil {
		s.logger.Printf("[SEARCH] %d chunks for %q (%s)", len(chunks), query, f.Describe())
	}
	return chunks, nil
}

func (s *VectorSearcher) FetchRange(ctx context.Context, sectionID string, start, end int) ([]store.Chunk, error) {
	return s.repo.FindRange(ctx, sectionID, start, end)
}
