package implementation

import (
	"context"
	"fmt"

	"ai-deptdocs-be/internal/mapper"
	"ai-deptdocs-be/internal/model"
	"ai-deptdocs-be/internal/repository/contract"
	"ai-deptdocs-be/pkg/store"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type CorpusChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CorpusChunkMapper
}

func NewCorpusChunkRepository(db *gorm.DB) contract.CorpusChunkRepository {
	return &CorpusChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewCorpusChunkMapper(),
	}
}

func (r *CorpusChunkRepositoryImpl) SearchSimilar(ctx context.Context, vector []float32, typeConds, yearConds []string, topK int) ([]store.Chunk, error) {
	if topK <= 0 {
		topK = 20
	}

	// Cosine distance in pgvector: embedding <=> query_vector, lower is closer
	type result struct {
		model.CorpusChunk
		Distance float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)

	query := r.db.WithContext(ctx).
		Table("corpus_chunks").
		Select("corpus_chunks.*, embedding <=> ? AS distance", queryVector).
		Where("type IN ?", typeConds)
	if len(yearConds) > 0 {
		query = query.Where("year IN ?", yearConds)
	}

	err := query.
		Order("distance").
		Limit(topK).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	chunks := make([]store.Chunk, len(results))
	for i, res := range results {
		chunks[i] = r.mapper.ToChunk(&res.CorpusChunk, res.Distance)
	}
	return chunks, nil
}

func (r *CorpusChunkRepositoryImpl) FindRange(ctx context.Context, sectionID string, start, end int) ([]store.Chunk, error) {
	var models []*model.CorpusChunk
	err := r.db.WithContext(ctx).
		Where("section_id = ?", sectionID).
		Where("chunk_index >= ? AND chunk_index < ?", start, end).
		Order("chunk_index").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	chunks := make([]store.Chunk, len(models))
	for i, m := range models {
		chunks[i] = r.mapper.ToChunk(m, 0)
	}
	return chunks, nil
}

func (r *CorpusChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []store.Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("corpus chunk bulk insert: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	models := make([]*model.CorpusChunk, len(chunks))
	for i, c := range chunks {
		models[i] = r.mapper.ToModel(c, embeddings[i])
	}
	return r.db.WithContext(ctx).CreateInBatches(models, 100).Error
}

func (r *CorpusChunkRepositoryImpl) DeleteBySourceId(ctx context.Context, sourceId string) error {
	return r.db.WithContext(ctx).Where("source_id = ?", sourceId).Delete(&model.CorpusChunk{}).Error
}

func (r *CorpusChunkRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CorpusChunk{}).Count(&count).Error
	return count, err
}
