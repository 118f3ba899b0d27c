package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"ai-deptdocs-be/internal/repository/implementation"
	"ai-deptdocs-be/pkg/database"
	"ai-deptdocs-be/pkg/embedding"
	"ai-deptdocs-be/pkg/store"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Loads pre-chunked corpus records from a JSONL file, embeds each chunk
// with the document task type, and bulk-inserts them. With -replace the
// source ids present in the file are purged first so re-ingesting a
// document never duplicates rows.
func main() {
	filePath := flag.String("file", "", "path to a JSONL file of corpus chunks")
	replace := flag.Bool("replace", false, "delete existing rows for each source id before inserting")
	flag.Parse()

	if *filePath == "" {
		log.Fatal("Error: -file is required")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}
	repo := implementation.NewCorpusChunkRepository(db)
	embedder := newEmbedder()

	chunks, err := readChunks(*filePath)
	if err != nil {
		log.Fatalf("Error: Failed to read %s: %v", *filePath, err)
	}
	log.Printf("Loaded %d chunks from %s", len(chunks), *filePath)

	ctx := context.Background()

	if *replace {
		for _, sourceId := range sourceIds(chunks) {
			if err := repo.DeleteBySourceId(ctx, sourceId); err != nil {
				log.Fatalf("Error: Failed to purge source %s: %v", sourceId, err)
			}
			log.Printf("Purged existing rows for source %s", sourceId)
		}
	}

	log.Println("Embedding chunks...")
	embeddings := make([][]float32, len(chunks))
	for i, c := range chunks {
		resp, err := embedder.Generate(c.Content, "RETRIEVAL_DOCUMENT")
		if err != nil {
			log.Fatalf("Error: Embedding chunk %d (%s) failed: %v", i, c.ID, err)
		}
		embeddings[i] = resp.Embedding.Values
		if (i+1)%50 == 0 {
			log.Printf("Embedded %d/%d chunks", i+1, len(chunks))
		}
	}

	if err := repo.CreateBulk(ctx, chunks, embeddings); err != nil {
		log.Fatalf("Error: Bulk insert failed: %v", err)
	}

	total, err := repo.Count(ctx)
	if err != nil {
		log.Fatalf("Error: Count failed: %v", err)
	}
	log.Printf("✅ Ingested %d chunks, corpus now holds %d rows", len(chunks), total)
}

func newEmbedder() embedding.EmbeddingProvider {
	model := getEnv("EMBEDDING_MODEL", "nomic-embed-text")
	if getEnv("EMBEDDING_PROVIDER", "ollama") == "openai" {
		return embedding.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_BASE_URL"), model)
	}
	return embedding.NewOllamaProvider(getEnv("OLLAMA_BASE_URL", "http://localhost:11434"), model)
}

// readChunks parses one chunk per line, skipping blanks. Missing ids get
// the section scheme used by the retriever's window expansion, or a
// random id for chunks with no section.
func readChunks(path string) ([]store.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []store.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var c store.Chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if c.ID == "" {
			if c.SectionID != "" {
				c.ID = fmt.Sprintf("%s_chunk_%d", c.SectionID, c.ChunkIndex)
			} else {
				c.ID = uuid.New().String()
			}
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func sourceIds(chunks []store.Chunk) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range chunks {
		if c.SourceID == "" || seen[c.SourceID] {
			continue
		}
		seen[c.SourceID] = true
		ids = append(ids, c.SourceID)
	}
	return ids
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
