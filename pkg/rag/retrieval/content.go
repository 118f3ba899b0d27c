package retrieval

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ai-deptdocs-be/pkg/store"
)

const tablePreviewChars = 200

// ContentBuilder renders a chunk into the text shown to the model. Table
// chunks pull their backing CSV, converted once per file and cached for
// the process lifetime.
type ContentBuilder struct {
	staticDir string
	logger    *log.Logger

	mu       sync.Mutex
	csvCache map[string]string
}

func NewContentBuilder(staticDir string, logger *log.Logger) *ContentBuilder {
	return &ContentBuilder{
		staticDir: staticDir,
		logger:    logger,
		csvCache:  make(map[string]string),
	}
}

// Build renders one chunk. fullTable embeds the whole rendered table;
// otherwise only a short preview is attached, which is what the
// relevance judge sees.
func (b *ContentBuilder) Build(c store.Chunk, fullTable bool) string {
	var content string

	switch c.Type {
	case store.TypeText:
		content = c.Content
	case store.TypeImage:
		content = fmt.Sprintf("Konten mengandung gambar, %s", c.Caption)
	case store.TypeTableRow:
		content = c.Content
		if c.CSVPath != "" {
			content = fmt.Sprintf("Table: %s\n%s\n%s", c.Caption, c.Content, b.table(c.CSVPath, fullTable))
		}
	case store.TypeTableCaption:
		content = fmt.Sprintf("Table Caption: %s", c.Caption)
		if c.CSVPath != "" {
			content += fmt.Sprintf("\nTable: %s\n%s", c.Caption, b.table(c.CSVPath, fullTable))
		}
	case store.TypeStaff:
		content = fmt.Sprintf("Staff Data: %s\n%s", c.Caption, c.Content)
		if c.CSVPath != "" {
			content += "\n" + b.table(c.CSVPath, fullTable)
		}
	default:
		content = c.Content
	}

	if c.SectionTitle != "" {
		content = fmt.Sprintf("%s\nsection title: %s", content, c.SectionTitle)
	}
	return content
}

func (b *ContentBuilder) table(csvPath string, full bool) string {
	md, err := b.csvRows(csvPath)
	if err != nil {
		if b.logger != nil {
			b.logger.Printf("[CONTENT] CSV %s unreadable: %v", csvPath, err)
		}
		return ""
	}
	if full || len(md) <= tablePreviewChars {
		return md
	}
	return md[:tablePreviewChars] + "..."
}

// RenderTable renders the CSV behind a table asset, sharing the
// process-wide cache with chunk content building.
func (b *ContentBuilder) RenderTable(path string) (string, error) {
	return b.csvRows(path)
}

// csvRows renders a CSV as one JSON object per row, keyed by header.
// Rows shorter than the header are padded with empty strings.
func (b *ContentBuilder) csvRows(path string) (string, error) {
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(b.staticDir, resolved)
	}

	b.mu.Lock()
	cached, ok := b.csvCache[resolved]
	b.mu.Unlock()
	if ok {
		return cached, nil
	}

	f, err := os.Open(resolved)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}

	header := records[0]
	lines := make([]string, 0, len(records)-1)
	for _, row := range records[1:] {
		rec := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		encoded, err := json.Marshal(rec)
		if err != nil {
			return "", err
		}
		lines = append(lines, string(encoded))
	}
	rendered := strings.Join(lines, "\n")

	b.mu.Lock()
	b.csvCache[resolved] = rendered
	b.mu.Unlock()
	return rendered, nil
}

// mergeChunkTexts joins consecutive chunk texts, collapsing the sliding
// window overlap the chunker leaves between neighbors.
func mergeChunkTexts(texts []string) string {
	var parts []string
	for _, t := range texts {
		t = strings.Join(strings.Fields(t), " ")
		if t == "" {
			continue
		}
		if len(parts) == 0 {
			parts = append(parts, t)
			continue
		}
		merged, ok := mergeWithOverlap(parts[len(parts)-1], t)
		if ok {
			parts[len(parts)-1] = merged
		} else {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// mergeWithOverlap looks for the longest word suffix of prev that
// prefixes next and splices the two around it.
func mergeWithOverlap(prev, next string) (string, bool) {
	prevWords := strings.Fields(prev)
	nextWords := strings.Fields(next)

	max := len(prevWords)
	if len(nextWords) < max {
		max = len(nextWords)
	}
	if max > 20 {
		max = 20
	}

	for n := max; n > 0; n-- {
		suffix := strings.Join(prevWords[len(prevWords)-n:], " ")
		prefix := strings.Join(nextWords[:n], " ")
		if suffix == prefix {
			joined := append(prevWords, nextWords[n:]...)
			return strings.Join(joined, " "), true
		}
	}
	return "", false
}
