package enrichment

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-deptdocs-be/pkg/rag/retrieval"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	rows string
	err  error
}

func (s stubRenderer) RenderTable(string) (string, error) {
	return s.rows, s.err
}

func newTestService(t *testing.T, staticDir string, tables TableRenderer) *Service {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	svc := NewService(pubSub, "enrichment.tasks", staticDir, tables, nil)
	require.NoError(t, svc.Consume(context.Background()))
	return svc
}

func waitResult(t *testing.T, results <-chan *Result) *Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no enrichment result")
		return nil
	}
}

func TestService_Submit_ProcessesAssets(t *testing.T) {
	dir := t.TempDir()
	imgData := []byte{0x89, 0x50, 0x4e, 0x47}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "struktur.png"), imgData, 0o644))

	svc := newTestService(t, dir, stubRenderer{rows: `{"Nama":"Budi"}`})

	results, cancel, err := svc.Submit(context.Background(), []retrieval.Asset{
		{Kind: "image", Path: "struktur.png", Caption: "Struktur Organisasi"},
		{Kind: "table", Path: "dosen.csv", Caption: "Tabel Dosen"},
	})
	require.NoError(t, err)
	defer cancel()

	r := waitResult(t, results)
	require.NotNil(t, r)

	require.Len(t, r.Images, 1)
	assert.Equal(t, "struktur.png", r.Images[0].Filename)
	assert.False(t, r.Images[0].Error)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(imgData), r.Images[0].DataURL)

	require.Len(t, r.Tables, 1)
	assert.Equal(t, "Tabel Dosen", r.Tables[0].Caption)
	assert.Equal(t, `{"Nama":"Budi"}`, r.Tables[0].Rows)

	// Channel closes after the single result
	_, open := <-results
	assert.False(t, open)
}

func TestService_Submit_EmptyAssets(t *testing.T) {
	svc := newTestService(t, t.TempDir(), stubRenderer{})

	results, cancel, err := svc.Submit(context.Background(), nil)
	require.NoError(t, err)
	defer cancel()

	_, open := <-results
	assert.False(t, open)
}

func TestService_Submit_MissingImageMarkedErrored(t *testing.T) {
	svc := newTestService(t, t.TempDir(), stubRenderer{})

	results, cancel, err := svc.Submit(context.Background(), []retrieval.Asset{
		{Kind: "image", Path: "hilang.png", Caption: "Gambar Hilang"},
	})
	require.NoError(t, err)
	defer cancel()

	r := waitResult(t, results)
	require.NotNil(t, r)
	require.Len(t, r.Images, 1)
	assert.True(t, r.Images[0].Error)
	assert.Empty(t, r.Images[0].DataURL)
}

func TestService_CancelClosesWithoutResult(t *testing.T) {
	svc := newTestService(t, t.TempDir(), stubRenderer{})

	ctx, outerCancel := context.WithCancel(context.Background())
	outerCancel()

	results, cancel, err := svc.Submit(ctx, []retrieval.Asset{
		{Kind: "image", Path: "a.png", Caption: "a"},
	})
	require.NoError(t, err)
	defer cancel()

	select {
	case r, open := <-results:
		assert.Nil(t, r)
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled task never released its channel")
	}
}
