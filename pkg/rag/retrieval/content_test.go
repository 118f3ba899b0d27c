package retrieval

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ai-deptdocs-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return name
}

func TestContentBuilder_TableChunk(t *testing.T) {
	dir := t.TempDir()
	name := writeCSV(t, dir, "dosen.csv", "Nama,Bidang\nBudi,Konversi Energi\nSari,Manufaktur\n")
	b := NewContentBuilder(dir, nil)

	chunk := store.Chunk{
		Type:    store.TypeTableCaption,
		Caption: "Tabel Dosen",
		CSVPath: name,
	}

	full := b.Build(chunk, true)
	assert.Contains(t, full, "Table Caption: Tabel Dosen")
	assert.Contains(t, full, `"Nama":"Budi"`)
	assert.Contains(t, full, `"Bidang":"Manufaktur"`)
}

func TestContentBuilder_PreviewTruncatesTable(t *testing.T) {
	dir := t.TempDir()
	var rows strings.Builder
	rows.WriteString("Nama,Bidang\n")
	for i := 0; i < 50; i++ {
		rows.WriteString("Seseorang Dengan Nama Panjang,Bidang Keahlian Tertentu\n")
	}
	name := writeCSV(t, dir, "big.csv", rows.String())
	b := NewContentBuilder(dir, nil)

	chunk := store.Chunk{Type: store.TypeTableRow, Content: "baris", Caption: "Tabel Besar", CSVPath: name}

	preview := b.Build(chunk, false)
	full := b.Build(chunk, true)
	assert.Less(t, len(preview), len(full))
	assert.Contains(t, preview, "...")
}

func TestContentBuilder_MissingCSVDegradesToText(t *testing.T) {
	b := NewContentBuilder(t.TempDir(), nil)

	chunk := store.Chunk{Type: store.TypeTableRow, Content: "baris tabel", Caption: "Tabel Hilang", CSVPath: "tidak-ada.csv"}

	out := b.Build(chunk, true)
	assert.Contains(t, out, "baris tabel")
}

func TestContentBuilder_ImageChunk(t *testing.T) {
	b := NewContentBuilder("", nil)

	out := b.Build(store.Chunk{Type: store.TypeImage, Caption: "Struktur Organisasi"}, true)
	assert.Equal(t, "Konten mengandung gambar, Struktur Organisasi", out)
}

func TestContentBuilder_SectionTitleAppended(t *testing.T) {
	b := NewContentBuilder("", nil)

	out := b.Build(store.Chunk{Type: store.TypeText, Content: "isi", SectionTitle: "Kurikulum"}, true)
	assert.Equal(t, "isi\nsection title: Kurikulum", out)
}
