package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// CorpusChunk is one indexed fragment of the department document corpus.
// Chunk ids follow the ingester's "<section_id>_chunk_<index>" scheme so
// neighbors are addressable without extra bookkeeping.
type CorpusChunk struct {
	Id           string          `gorm:"type:varchar(128);primaryKey"`
	SourceId     string          `gorm:"type:varchar(128);index"`
	Type         string          `gorm:"type:varchar(32);index"`
	Content      string          `gorm:"type:text"`
	Embedding    pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text dimensionality
	SectionId    string          `gorm:"type:varchar(128);index:idx_section_chunk"`
	SectionTitle string          `gorm:"type:text"`
	ChunkIndex   int             `gorm:"index:idx_section_chunk"`
	TotalChunks  int             `gorm:"default:0"`
	Caption      string          `gorm:"type:text"`
	CsvPath      string          `gorm:"type:text"`
	ImagePath    string          `gorm:"type:text"`
	Year         string          `gorm:"type:varchar(16);index"`
	Metadata     datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt    time.Time       `gorm:"autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime"`
}

func (CorpusChunk) TableName() string {
	return "corpus_chunks"
}
