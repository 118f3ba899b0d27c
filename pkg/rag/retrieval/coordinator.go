// Package retrieval turns a search query into an assembled context
// block: vector search, window expansion, relevance filtering and a
// character-budgeted assembly with a side channel of referenced assets.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"ai-deptdocs-be/pkg/rag/relevance"
	"ai-deptdocs-be/pkg/store"
)

// ErrSearch marks a vector-search failure. Fatal to the request, unlike
// per-candidate relevance failures.
var ErrSearch = errors.New("vector search failed")

// Searcher is the vector store boundary.
type Searcher interface {
	// Search returns the topK nearest chunks for query under f, each
	// carrying its cosine distance.
	Search(ctx context.Context, query string, f Filter, topK int) ([]store.Chunk, error)

	// FetchRange returns the chunks of one section with index in
	// [start, end), ordered by index.
	FetchRange(ctx context.Context, sectionID string, start, end int) ([]store.Chunk, error)
}

// Asset points at a table or image referenced by accepted chunks,
// collected for asynchronous enrichment instead of inline expansion.
type Asset struct {
	Kind    string `json:"kind"` // "image" or "table"
	Path    string `json:"path"`
	Caption string `json:"caption"`
}

// ContextBlock is the assembled retrieval result.
type ContextBlock struct {
	Content   string
	Assets    []Asset
	Truncated bool

	// FilterDescription names the applied scoping for status events.
	FilterDescription string
}

// Request carries one retrieval invocation. Zero values fall back to the
// coordinator's configured defaults.
type Request struct {
	SearchQuery     string
	RelevanceQuery  string
	Filter          Filter
	TopK            int
	ExpansionWindow int

	// IncludeFullTable embeds whole rendered tables into the budgeted
	// text instead of previews.
	IncludeFullTable bool
}

// Config holds the coordinator defaults, injected at construction.
type Config struct {
	TopK            int
	ExpansionWindow int
	CharBudget      int
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 20
	}
	if c.ExpansionWindow <= 0 {
		c.ExpansionWindow = 5
	}
	if c.CharBudget <= 0 {
		c.CharBudget = 24000
	}
	return c
}

type Coordinator struct {
	searcher  Searcher
	evaluator *relevance.Evaluator
	content   *ContentBuilder
	cfg       Config
	logger    *log.Logger
}

func NewCoordinator(searcher Searcher, evaluator *relevance.Evaluator, content *ContentBuilder, cfg Config, logger *log.Logger) *Coordinator {
	return &Coordinator{
		searcher:  searcher,
		evaluator: evaluator,
		content:   content,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Retrieve runs the pipeline. An empty hit set yields an empty block,
// not an error; only search unavailability is fatal.
func (c *Coordinator) Retrieve(ctx context.Context, req Request) (*ContextBlock, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = c.cfg.TopK
	}
	window := req.ExpansionWindow
	if window <= 0 {
		window = c.cfg.ExpansionWindow
	}
	relevanceQuery := req.RelevanceQuery
	if relevanceQuery == "" {
		relevanceQuery = req.SearchQuery
	}

	block := &ContextBlock{FilterDescription: req.Filter.Describe()}

	hits, err := c.searcher.Search(ctx, req.SearchQuery, req.Filter, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}
	if c.logger != nil {
		c.logger.Printf("[RETRIEVAL] %d raw hits for %q", len(hits), req.SearchQuery)
	}
	if len(hits) == 0 {
		return block, nil
	}

	expanded := c.expand(ctx, hits, window)

	cands := make([]relevance.Candidate, 0, len(expanded))
	for _, chunk := range expanded {
		cands = append(cands, relevance.Candidate{
			Chunk:   chunk,
			Content: c.content.Build(chunk, false),
		})
	}
	accepted := c.evaluator.Filter(ctx, relevanceQuery, cands)
	if len(accepted) == 0 {
		return block, nil
	}

	chunks := dedupeByTable(accepted)
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Distance < chunks[j].Distance
	})

	c.assemble(block, chunks, req.IncludeFullTable)
	return block, nil
}

// expand replaces each text hit with its surrounding window from the
// same section, merged into one chunk, and dedupes by chunk id. Window
// fetch failures fall back to the seed chunk alone.
func (c *Coordinator) expand(ctx context.Context, hits []store.Chunk, window int) []store.Chunk {
	out := make([]store.Chunk, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))

	for _, hit := range hits {
		chunk := hit
		if hit.Type == store.TypeText && window > 1 && hit.SectionID != "" {
			chunk = c.expandText(ctx, hit, window)
		}
		if chunk.ID == "" {
			continue
		}
		if _, dup := seen[chunk.ID]; dup {
			continue
		}
		seen[chunk.ID] = struct{}{}
		out = append(out, chunk)
	}
	return out
}

func (c *Coordinator) expandText(ctx context.Context, hit store.Chunk, window int) store.Chunk {
	half := window / 2
	start := hit.ChunkIndex - half
	if start < 0 {
		start = 0
	}
	end := hit.ChunkIndex + half + 1
	if end > hit.TotalChunks {
		end = hit.TotalChunks
	}
	// Slide the window back to full size at the section edges
	if end-start < window {
		if start == 0 {
			end = min(hit.TotalChunks, window)
		} else if end == hit.TotalChunks {
			start = max(0, hit.TotalChunks-window)
		}
	}

	neighbors, err := c.searcher.FetchRange(ctx, hit.SectionID, start, end)
	if err != nil || len(neighbors) <= 1 {
		if err != nil && c.logger != nil {
			c.logger.Printf("[RETRIEVAL] Expansion of %s failed, keeping seed: %v", hit.ID, err)
		}
		return hit
	}

	texts := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		texts = append(texts, n.Content)
	}

	merged := hit
	merged.Content = mergeChunkTexts(texts)
	return merged
}

// dedupeByTable drops candidates whose rendered table was already taken
// by an earlier candidate, then falls back to id dedup.
func dedupeByTable(cands []relevance.Candidate) []store.Chunk {
	seen := make(map[string]struct{}, len(cands))
	out := make([]store.Chunk, 0, len(cands))
	for _, cand := range cands {
		key := cand.Chunk.CSVPath
		if key == "" {
			key = cand.Chunk.ID
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cand.Chunk)
	}
	return out
}

// assemble concatenates rendered chunks most-similar-first until the
// character budget runs out, and collects their assets.
func (c *Coordinator) assemble(block *ContextBlock, chunks []store.Chunk, fullTable bool) {
	var (
		parts        []string
		used         int
		seenContents = make(map[string]struct{}, len(chunks))
		collector    = newAssetCollector()
	)

	for i, chunk := range chunks {
		rendered := fmt.Sprintf("[%s|%.4f] %s", chunk.ID, chunk.Distance, c.content.Build(chunk, fullTable))

		normalized := strings.Join(strings.Fields(rendered), " ")
		if _, dup := seenContents[normalized]; dup {
			continue
		}
		seenContents[normalized] = struct{}{}

		cost := len(rendered)
		if len(parts) > 0 {
			cost += 2
		}
		if used+cost > c.cfg.CharBudget {
			block.Truncated = true
			if c.logger != nil {
				c.logger.Printf("[RETRIEVAL] Budget reached, dropping %d candidates", len(chunks)-i)
			}
			break
		}
		used += cost
		parts = append(parts, rendered)
		collector.add(chunk)
	}

	block.Content = strings.Join(parts, "\n\n")
	block.Assets = collector.assets
}

// assetCollector dedups assets by normalized caption so the same table
// referenced by several chunks is enriched once.
type assetCollector struct {
	assets     []Asset
	seenImages map[string]struct{}
	seenTables map[string]struct{}
}

func newAssetCollector() *assetCollector {
	return &assetCollector{
		seenImages: make(map[string]struct{}),
		seenTables: make(map[string]struct{}),
	}
}

var captionCleanPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

func normalizeCaption(caption string) string {
	cleaned := captionCleanPattern.ReplaceAllString(strings.ToLower(caption), "")
	tokens := strings.Fields(cleaned)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func (ac *assetCollector) add(chunk store.Chunk) {
	key := normalizeCaption(chunk.Caption)
	if key == "" {
		return
	}
	if chunk.ImagePath != "" {
		if _, dup := ac.seenImages[key]; !dup {
			ac.seenImages[key] = struct{}{}
			ac.assets = append(ac.assets, Asset{Kind: "image", Path: chunk.ImagePath, Caption: chunk.Caption})
		}
	}
	if chunk.CSVPath != "" {
		if _, dup := ac.seenTables[key]; !dup {
			ac.seenTables[key] = struct{}{}
			ac.assets = append(ac.assets, Asset{Kind: "table", Path: chunk.CSVPath, Caption: chunk.Caption})
		}
	}
}
