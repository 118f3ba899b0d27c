package store

// Chunk modality types as stored in the corpus index
const (
	TypeText         = "text"
	TypeImage        = "image"
	TypeTableRow     = "table_row"
	TypeTableCaption = "table_caption"
	TypeStaff        = "tendik"
)

// Year cohorts recognised by the corpus filters. GENERAL documents apply
// to every cohort and are always included alongside a specific year.
const (
	YearSarjana  = "SARJANA"
	YearMagister = "MAGISTER"
	YearDoktor   = "DOKTOR"
	YearGeneral  = "GENERAL"
)

// Chunk is a single retrieved passage from the document corpus, together
// with everything the pipeline needs to expand, judge and render it.
// Chunks live only for the duration of one retrieval call.
type Chunk struct {
	ID       string  `json:"id"`
	SourceID string  `json:"source_id"` // owning document/section group
	Type     string  `json:"type"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"` // cosine distance, lower is closer

	// Text-chunk position inside its section, used for window expansion
	SectionID    string `json:"section_id,omitempty"`
	SectionTitle string `json:"section_title,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
	TotalChunks  int    `json:"total_chunks"`

	// Non-text asset references
	Caption   string `json:"caption,omitempty"`
	CSVPath   string `json:"csv_path,omitempty"`
	ImagePath string `json:"image_path,omitempty"`

	Year string `json:"year,omitempty"`
}

// HasTable reports whether the chunk references a tabular asset.
func (c *Chunk) HasTable() bool {
	return c.CSVPath != ""
}

// HasImage reports whether the chunk references an image asset.
func (c *Chunk) HasImage() bool {
	return c.ImagePath != ""
}
