package mapper

import (
	"ai-deptdocs-be/internal/model"
	"ai-deptdocs-be/pkg/store"

	"github.com/pgvector/pgvector-go"
)

type CorpusChunkMapper struct{}

func NewCorpusChunkMapper() *CorpusChunkMapper {
	return &CorpusChunkMapper{}
}

// ToChunk converts a stored row into the pipeline's domain chunk.
// distance is the cosine distance of the row against the query vector;
// pass 0 for rows fetched by id rather than by similarity.
func (m *CorpusChunkMapper) ToChunk(c *model.CorpusChunk, distance float64) store.Chunk {
	if c == nil {
		return store.Chunk{}
	}
	return store.Chunk{
		ID:           c.Id,
		SourceID:     c.SourceId,
		Type:         c.Type,
		Content:      c.Content,
		Distance:     distance,
		SectionID:    c.SectionId,
		SectionTitle: c.SectionTitle,
		ChunkIndex:   c.ChunkIndex,
		TotalChunks:  c.TotalChunks,
		Caption:      c.Caption,
		CSVPath:      c.CsvPath,
		ImagePath:    c.ImagePath,
		Year:         c.Year,
	}
}

// ToModel builds a storable row from a domain chunk plus its embedding,
// used by the ingestion tooling. Distance is a query-time value and is
// not persisted.
func (m *CorpusChunkMapper) ToModel(c store.Chunk, embedding []float32) *model.CorpusChunk {
	return &model.CorpusChunk{
		Id:           c.ID,
		SourceId:     c.SourceID,
		Type:         c.Type,
		Content:      c.Content,
		Embedding:    pgvector.NewVector(embedding),
		SectionId:    c.SectionID,
		SectionTitle: c.SectionTitle,
		ChunkIndex:   c.ChunkIndex,
		TotalChunks:  c.TotalChunks,
		Caption:      c.Caption,
		CsvPath:      c.CSVPath,
		ImagePath:    c.ImagePath,
		Year:         c.Year,
	}
}
