package bootstrap

import (
	"context"
	"log"

	"ai-deptdocs-be/internal/config"
	"ai-deptdocs-be/internal/controller"
	"ai-deptdocs-be/internal/pkg/logger"
	"ai-deptdocs-be/internal/repository/implementation"
	"ai-deptdocs-be/internal/telemetry"
	"ai-deptdocs-be/pkg/embedding"
	"ai-deptdocs-be/pkg/llm/factory"
	"ai-deptdocs-be/pkg/rag/conversation"
	"ai-deptdocs-be/pkg/rag/enrichment"
	"ai-deptdocs-be/pkg/rag/relevance"
	"ai-deptdocs-be/pkg/rag/retrieval"
	"ai-deptdocs-be/pkg/rag/router"
	"ai-deptdocs-be/pkg/rag/search"
	"ai-deptdocs-be/pkg/rag/stream"

	pktNats "ai-deptdocs-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	QueryController controller.IQueryController

	// Background Services (Exposed for main.go to run)
	EnrichmentService *enrichment.Service

	NatsPublisher *pktNats.Publisher
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	ragLogger := logger.NewPipelineLogger("logs/pipeline.log")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "openai" {
		embeddingProvider = embedding.NewOpenAIProvider(cfg.Ai.OpenAIAPIKey, cfg.Ai.OpenAIBaseURL, cfg.Ai.EmbedModel)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.Ai.EmbedModel)
	} else {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbedModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbedModel)
	}

	llmBaseURL := cfg.Ai.OllamaBaseURL
	if cfg.Ai.LLMProvider == "openai" {
		llmBaseURL = cfg.Ai.OpenAIBaseURL
	}

	generationLLM, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		llmBaseURL,
		cfg.Ai.OpenAIAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// A smaller model handles routing and relevance verdicts; it falls
	// back to the generation model when ROUTER_MODEL is unset.
	routerLLM := generationLLM
	if cfg.Ai.RouterModel != cfg.Ai.LLMModel {
		routerLLM, err = factory.NewLLMProvider(
			cfg.Ai.LLMProvider,
			cfg.Ai.RouterModel,
			llmBaseURL,
			cfg.Ai.OpenAIAPIKey,
		)
		if err != nil {
			log.Fatalf("[FATAL] Failed to initialize router LLM Provider: %v", err)
		}
		log.Printf("[INFO] Using Router Model: %s", cfg.Ai.RouterModel)
	}

	// 4. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	var verdictCache relevance.VerdictCache
	if cfg.Rag.UseRedisCache && cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		verdictCache = relevance.NewRedisCache(rdb, cfg.Rag.RelevanceCacheTTL)
		log.Printf("[INFO] Relevance verdict cache: REDIS")
	} else {
		verdictCache = relevance.NewMemoryCache(cfg.Rag.RelevanceCacheTTL)
		log.Printf("[INFO] Relevance verdict cache: MEMORY")
	}

	// 5. Pipeline
	sessionStore := conversation.NewStore(conversation.Config{
		MemoryExchanges: cfg.Rag.MemoryExchanges,
		SessionTTL:      cfg.Rag.SessionTTL,
		SystemPrompt:    cfg.Ai.SystemPrompt,
	}, ragLogger)

	queryRouter := router.NewRouter(routerLLM, cfg.Ai.SystemPrompt, router.DefaultRewritePolicy(), ragLogger)

	evaluator := relevance.NewEvaluator(
		routerLLM,
		relevance.PolicyFromName(cfg.Rag.RelevancePolicy, cfg.Rag.SimilarityThreshold),
		verdictCache,
		relevance.Config{
			Workers:        cfg.Rag.RelevanceWorkers,
			VerdictTimeout: cfg.Rag.RelevanceTimeout,
		},
		ragLogger,
	)

	contentBuilder := retrieval.NewContentBuilder(cfg.App.StaticDir, ragLogger)

	chunkRepo := implementation.NewCorpusChunkRepository(db)
	searcher := search.NewVectorSearcher(embeddingProvider, chunkRepo, ragLogger)

	retriever := retrieval.NewCoordinator(searcher, evaluator, contentBuilder, retrieval.Config{
		TopK:            cfg.Rag.TopK,
		ExpansionWindow: cfg.Rag.ExpansionWindow,
		CharBudget:      cfg.Rag.ContextCharBudget,
	}, ragLogger)

	enrichmentService := enrichment.NewService(
		pubSub,
		cfg.Rag.EnrichmentTopic,
		cfg.App.StaticDir,
		contentBuilder,
		ragLogger,
	)

	telemetryPub := telemetry.NewNatsPublisher(natsPub, sysLogger)

	pipeline := stream.NewCoordinator(
		queryRouter,
		retriever,
		sessionStore,
		enrichmentService,
		generationLLM,
		telemetryPub,
		stream.Config{
			RouterTimeout:     cfg.Rag.RouterTimeout,
			RetrievalTimeout:  cfg.Rag.RetrievalTimeout,
			GenerationTimeout: cfg.Rag.GenerationTimeout,
			MetadataWait:      cfg.Rag.MetadataWait,
		},
		ragLogger,
	)

	// 6. Controllers
	return &Container{
		QueryController:   controller.NewQueryController(pipeline, sessionStore, cfg.Ai.LLMModel),
		EnrichmentService: enrichmentService,
		NatsPublisher:     natsPub,
	}
}
