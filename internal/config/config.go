package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Rag      RagConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	StaticDir          string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	EmbeddingProvider string // "openai" or "ollama"
	OllamaBaseURL     string
	EmbedModel        string
	LLMProvider       string // "ollama", "openai"
	LLMModel          string // generation model
	RouterModel       string // small model for routing and relevance
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	SystemPrompt      string
}

// RagConfig is the pipeline tuning surface. Every knob is injected into
// the relevant component at construction; nothing reads the environment
// after startup.
type RagConfig struct {
	MemoryExchanges     int
	SessionTTL          time.Duration
	RelevanceWorkers    int
	RelevanceTimeout    time.Duration
	RouterTimeout       time.Duration
	RetrievalTimeout    time.Duration
	GenerationTimeout   time.Duration
	MetadataWait        time.Duration
	RelevancePolicy     string // "hybrid", "threshold", "llm"
	SimilarityThreshold float64
	ContextCharBudget   int
	TopK                int
	ExpansionWindow     int
	EnrichmentTopic     string
	RelevanceCacheTTL   time.Duration
	UseRedisCache       bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			StaticDir:          getEnv("STATIC_DIR", "./static"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			EmbedModel:        getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			RouterModel:       getEnv("ROUTER_MODEL", getEnv("LLM_MODEL", "llama3")),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			SystemPrompt:      getEnv("SYSTEM_PROMPT", defaultSystemPrompt),
		},
		Rag: RagConfig{
			MemoryExchanges:     getEnvAsInt("RAG_MEMORY_EXCHANGES", 1),
			SessionTTL:          getEnvAsDuration("RAG_SESSION_TTL", 2*time.Minute),
			RelevanceWorkers:    getEnvAsInt("RAG_RELEVANCE_WORKERS", 12),
			RelevanceTimeout:    getEnvAsDuration("RAG_RELEVANCE_TIMEOUT", 15*time.Second),
			RouterTimeout:       getEnvAsDuration("RAG_ROUTER_TIMEOUT", 30*time.Second),
			RetrievalTimeout:    getEnvAsDuration("RAG_RETRIEVAL_TIMEOUT", 60*time.Second),
			GenerationTimeout:   getEnvAsDuration("RAG_GENERATION_TIMEOUT", 120*time.Second),
			MetadataWait:        getEnvAsDuration("RAG_METADATA_WAIT", 10*time.Second),
			RelevancePolicy:     getEnv("RAG_RELEVANCE_POLICY", "hybrid"),
			SimilarityThreshold: getEnvAsFloat("RAG_SIMILARITY_THRESHOLD", 0.35),
			ContextCharBudget:   getEnvAsInt("RAG_CONTEXT_CHAR_BUDGET", 24000),
			TopK:                getEnvAsInt("RAG_TOP_K", 20),
			ExpansionWindow:     getEnvAsInt("RAG_EXPANSION_WINDOW", 5),
			EnrichmentTopic:     getEnv("RAG_ENRICHMENT_TOPIC", "ENRICH_CONTEXT_ASSETS"),
			RelevanceCacheTTL:   getEnvAsDuration("RAG_RELEVANCE_CACHE_TTL", time.Hour),
			UseRedisCache:       getEnvAsBool("RAG_RELEVANCE_CACHE_REDIS", false),
		},
	}
}

const defaultSystemPrompt = "Anda adalah asisten virtual Departemen Teknik Mesin dan Industri. " +
	"Jawab pertanyaan mahasiswa dengan ramah dalam bahasa Indonesia berdasarkan dokumen resmi departemen."

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
