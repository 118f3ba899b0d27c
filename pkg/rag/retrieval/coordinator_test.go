package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ai-deptdocs-be/pkg/llm"
	"ai-deptdocs-be/pkg/rag/relevance"
	"ai-deptdocs-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	hits      []store.Chunk
	searchErr error

	ranges     map[string][]store.Chunk
	rangeCalls []string
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ Filter, topK int) ([]store.Chunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.hits) > topK {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

func (f *fakeSearcher) FetchRange(_ context.Context, sectionID string, start, end int) ([]store.Chunk, error) {
	f.rangeCalls = append(f.rangeCalls, fmt.Sprintf("%s:%d-%d", sectionID, start, end))
	return f.ranges[sectionID], nil
}

type acceptAllLLM struct{}

func (acceptAllLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return `{"explanation": "ok", "is_relevant": true}`, nil
}

func (a acceptAllLLM) Generate(ctx context.Context, _ string, _ ...llm.Option) (string, error) {
	return a.Chat(ctx, nil)
}

func (acceptAllLLM) Stream(context.Context, []llm.Message, ...llm.Option) (<-chan string, <-chan error) {
	ch := make(chan string)
	errCh := make(chan error, 1)
	close(ch)
	close(errCh)
	return ch, errCh
}

// newCoordinator wires a coordinator whose threshold policy accepts
// everything without model calls.
func newCoordinator(s Searcher, cfg Config) *Coordinator {
	eval := relevance.NewEvaluator(acceptAllLLM{}, relevance.ThresholdPolicy{Threshold: 1.0}, nil, relevance.Config{}, nil)
	return NewCoordinator(s, eval, NewContentBuilder("", nil), cfg, nil)
}

func textChunk(id string, distance float64) store.Chunk {
	return store.Chunk{ID: id, Type: store.TypeText, Content: "konten " + id, Distance: distance}
}

func TestRetrieve_SearchFailureIsFatal(t *testing.T) {
	s := &fakeSearcher{searchErr: errors.New("connection refused")}
	c := newCoordinator(s, Config{})

	_, err := c.Retrieve(context.Background(), Request{SearchQuery: "SKS maksimal"})
	require.ErrorIs(t, err, ErrSearch)
}

func TestRetrieve_NoHitsYieldsEmptyBlock(t *testing.T) {
	s := &fakeSearcher{}
	c := newCoordinator(s, Config{})

	block, err := c.Retrieve(context.Background(), Request{SearchQuery: "topik tidak ada"})
	require.NoError(t, err)
	assert.Empty(t, block.Content)
	assert.Empty(t, block.Assets)
	assert.False(t, block.Truncated)
}

func TestRetrieve_OrdersByAscendingDistance(t *testing.T) {
	s := &fakeSearcher{hits: []store.Chunk{
		textChunk("far", 0.8),
		textChunk("near", 0.1),
		textChunk("mid", 0.4),
	}}
	c := newCoordinator(s, Config{ExpansionWindow: 1})

	block, err := c.Retrieve(context.Background(), Request{SearchQuery: "q"})
	require.NoError(t, err)

	near := strings.Index(block.Content, "[near|")
	mid := strings.Index(block.Content, "[mid|")
	far := strings.Index(block.Content, "[far|")
	require.True(t, near >= 0 && mid >= 0 && far >= 0)
	assert.Less(t, near, mid)
	assert.Less(t, mid, far)
}

func TestRetrieve_BudgetTruncatesFurthestFirst(t *testing.T) {
	long := strings.Repeat("x", 200)
	s := &fakeSearcher{hits: []store.Chunk{
		{ID: "a", Type: store.TypeText, Content: long, Distance: 0.1},
		{ID: "b", Type: store.TypeText, Content: long, Distance: 0.2},
		{ID: "c", Type: store.TypeText, Content: long, Distance: 0.3},
	}}
	c := newCoordinator(s, Config{ExpansionWindow: 1, CharBudget: 500})

	block, err := c.Retrieve(context.Background(), Request{SearchQuery: "q"})
	require.NoError(t, err)

	assert.True(t, block.Truncated)
	assert.Contains(t, block.Content, "[a|")
	assert.Contains(t, block.Content, "[b|")
	assert.NotContains(t, block.Content, "[c|")
}

func TestRetrieve_ExpandsTextAroundMatch(t *testing.T) {
	seed := store.Chunk{
		ID: "sec1_chunk_002", Type: store.TypeText, Content: "bagian tengah",
		SectionID: "sec1", ChunkIndex: 2, TotalChunks: 10, Distance: 0.2,
	}
	s := &fakeSearcher{
		hits: []store.Chunk{seed},
		ranges: map[string][]store.Chunk{
			"sec1": {
				{ID: "sec1_chunk_000", Content: "bagian awal dan"},
				{ID: "sec1_chunk_001", Content: "dan bagian tengah"},
				{ID: "sec1_chunk_002", Content: "bagian tengah lalu"},
				{ID: "sec1_chunk_003", Content: "lalu bagian akhir"},
			},
		},
	}
	c := newCoordinator(s, Config{ExpansionWindow: 5})

	block, err := c.Retrieve(context.Background(), Request{SearchQuery: "q"})
	require.NoError(t, err)

	require.Len(t, s.rangeCalls, 1)
	assert.Equal(t, "sec1:0-5", s.rangeCalls[0])
	assert.Contains(t, block.Content, "bagian awal dan bagian tengah lalu bagian akhir")
}

func TestRetrieve_ExpansionWindowSlidesAtSectionEnd(t *testing.T) {
	seed := store.Chunk{
		ID: "sec1_chunk_009", Type: store.TypeText, Content: "akhir",
		SectionID: "sec1", ChunkIndex: 9, TotalChunks: 10, Distance: 0.2,
	}
	s := &fakeSearcher{hits: []store.Chunk{seed}, ranges: map[string][]store.Chunk{}}
	c := newCoordinator(s, Config{ExpansionWindow: 5})

	_, err := c.Retrieve(context.Background(), Request{SearchQuery: "q"})
	require.NoError(t, err)

	require.Len(t, s.rangeCalls, 1)
	assert.Equal(t, "sec1:5-10", s.rangeCalls[0])
}

func TestRetrieve_CollectsAssetsDeduped(t *testing.T) {
	s := &fakeSearcher{hits: []store.Chunk{
		{ID: "t1", Type: store.TypeTableCaption, Caption: "Tabel Dosen DTMI", CSVPath: "tables/dosen.csv", Distance: 0.1},
		{ID: "t2", Type: store.TypeTableRow, Content: "baris", Caption: "tabel DOSEN dtmi!", CSVPath: "tables/dosen2.csv", Distance: 0.2},
		{ID: "i1", Type: store.TypeImage, Caption: "Struktur Organisasi", ImagePath: "img/struktur.png", Distance: 0.3},
	}}
	c := newCoordinator(s, Config{})

	block, err := c.Retrieve(context.Background(), Request{SearchQuery: "dosen"})
	require.NoError(t, err)

	require.Len(t, block.Assets, 2)
	assert.Equal(t, Asset{Kind: "table", Path: "tables/dosen.csv", Caption: "Tabel Dosen DTMI"}, block.Assets[0])
	assert.Equal(t, Asset{Kind: "image", Path: "img/struktur.png", Caption: "Struktur Organisasi"}, block.Assets[1])
}

func TestRetrieve_RelevanceRejectionExcludesChunk(t *testing.T) {
	s := &fakeSearcher{hits: []store.Chunk{
		textChunk("keep", 0.1),
		textChunk("drop", 0.9),
	}}
	eval := relevance.NewEvaluator(acceptAllLLM{}, relevance.ThresholdPolicy{Threshold: 0.5}, nil, relevance.Config{}, nil)
	c := NewCoordinator(s, eval, NewContentBuilder("", nil), Config{ExpansionWindow: 1}, nil)

	block, err := c.Retrieve(context.Background(), Request{SearchQuery: "q"})
	require.NoError(t, err)

	assert.Contains(t, block.Content, "[keep|")
	assert.NotContains(t, block.Content, "[drop|")
}

func TestFilter_TypeConditions(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"text", []string{store.TypeText, store.TypeStaff}},
		{"image", []string{store.TypeImage, store.TypeStaff}},
		{"table", []string{store.TypeTableRow, store.TypeTableCaption, store.TypeStaff}},
		{"all", []string{store.TypeText, store.TypeImage, store.TypeTableRow, store.TypeTableCaption, store.TypeStaff}},
		{"", []string{store.TypeText, store.TypeImage, store.TypeTableRow, store.TypeTableCaption, store.TypeStaff}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Filter{Type: tt.in}.TypeConditions())
		})
	}
}

func TestFilter_YearConditions(t *testing.T) {
	assert.Equal(t, []string{store.YearSarjana, store.YearGeneral}, Filter{Year: "sarjana"}.YearConditions())
	assert.Equal(t, []string{store.YearMagister, store.YearGeneral}, Filter{Year: "MAGISTER"}.YearConditions())
	assert.Nil(t, Filter{}.YearConditions())
	assert.Nil(t, Filter{Year: "2024"}.YearConditions())
}

func TestMergeChunkTexts(t *testing.T) {
	got := mergeChunkTexts([]string{
		"program studi menawarkan mata kuliah",
		"mata kuliah pilihan setiap semester",
		"topik yang sama sekali lain",
	})
	assert.Equal(t, "program studi menawarkan mata kuliah pilihan setiap semester topik yang sama sekali lain", got)
}
