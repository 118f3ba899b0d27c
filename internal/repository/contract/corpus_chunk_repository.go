package contract

import (
	"context"

	"ai-deptdocs-be/pkg/store"
)

type CorpusChunkRepository interface {
	// SearchSimilar runs a cosine-distance search over the corpus, restricted
	// to the given chunk types and, when yearConds is non-empty, years.
	// Results come back closest first with Distance populated.
	SearchSimilar(ctx context.Context, vector []float32, typeConds, yearConds []string, topK int) ([]store.Chunk, error)
	// FindRange returns the text chunks of a section with start <= chunk_index < end,
	// ordered by chunk_index.
	FindRange(ctx context.Context, sectionID string, start, end int) ([]store.Chunk, error)
	CreateBulk(ctx context.Context, chunks []store.Chunk, embeddings [][]float32) error
	DeleteBySourceId(ctx context.Context, sourceId string) error
	Count(ctx context.Context) (int64, error)
}
