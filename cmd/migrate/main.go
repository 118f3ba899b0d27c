package main

import (
	"log"
	"os"

	"ai-deptdocs-be/internal/model"
	"ai-deptdocs-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	// 3. Pre-Migration: pgvector extension (AutoMigrate cannot create it)
	log.Println("Step 1: Ensuring pgvector extension...")
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		log.Fatalf("Error: Failed to create vector extension: %v", err)
	}

	// 4. AutoMigrate Models
	log.Println("Step 2: Running AutoMigrate...")
	if err := db.AutoMigrate(&model.CorpusChunk{}); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Post-Migration: HNSW index for cosine search. Done manually so
	// we control the operator class.
	log.Println("Step 3: Ensuring HNSW vector index...")
	indexSQL := `CREATE INDEX IF NOT EXISTS idx_corpus_chunks_embedding
		ON corpus_chunks USING hnsw (embedding vector_cosine_ops);`
	if err := db.Exec(indexSQL).Error; err != nil {
		log.Printf("Warn: Failed to create HNSW index: %v. Continuing...", err)
	}

	log.Println("✅ Migration completed successfully")
}
