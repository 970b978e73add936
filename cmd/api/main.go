package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"diary-assistant/internal/cache"
	"diary-assistant/internal/config"
	"diary-assistant/internal/handlers"
	"diary-assistant/internal/http"
	"diary-assistant/internal/indexer"
	"diary-assistant/internal/llm"
	"diary-assistant/internal/rag"
	"diary-assistant/internal/service"
	"diary-assistant/internal/storage"
	"diary-assistant/internal/vectorstore"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	noteRepo := storage.NewNoteRepo(db)
	taskRepo := storage.NewTaskRepo(db)
	indexRepo := storage.NewIndexRepo(db)

	// Response cache: Redis when configured, otherwise in-process
	var backend cache.Backend
	if cfg.RedisURL != "" {
		redisBackend, err := cache.NewRedisBackendFromURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to create Redis client: %v", err)
		}
		defer func() {
			_ = redisBackend.Close()
		}()
		backend = redisBackend
		slog.Info("Response cache using Redis")
	} else {
		backend = cache.NewMemoryBackend(cfg.CacheMaxEntries)
		slog.Info("Response cache using in-process LRU", "max_entries", cfg.CacheMaxEntries)
	}
	responses := cache.New(backend)

	// External providers
	rateLimit := llm.WithRateLimit(cfg.ProviderRateLimit, 5)
	embeddings := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDimensions, rateLimit)
	embedder := llm.NewCachedEmbedder(embeddings, cfg.EmbeddingCacheSize)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName, rateLimit)
	if cfg.EmbeddingBaseURL == "" {
		slog.Warn("EMBEDDING_BASE_URL not set, indexing and semantic search are unavailable")
	}
	if !llmClient.Configured() {
		slog.Info("LLM_BASE_URL not set, using heuristic summaries and task extraction")
	}

	// Indexing
	chunker, err := indexer.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("Failed to create chunker: %v", err)
	}
	indexes := vectorstore.NewCache(indexRepo)
	builder := indexer.NewBuilder(noteRepo, chunker, embedder, indexes, vectorstore.Params{
		M:        cfg.IndexM,
		EfSearch: cfg.IndexEfSearch,
		Seed:     vectorstore.DefaultParams().Seed,
	}, indexer.WithSearchInvalidator(responses))
	scheduler := indexer.NewScheduler(builder, cfg.RebuildConcurrency, cfg.RebuildTimeout)

	// Retrieval pipeline
	ragEngine := rag.NewEngine(
		rag.NewRetriever(indexes, embedder),
		rag.NewKeywordSearcher(noteRepo, chunker),
		rag.NewLLMSummarizer(llmClient),
		rag.NewLLMTaskExtractor(llmClient),
		rag.NewTaskRecorder(noteRepo, taskRepo),
	)
	slog.Info("RAG engine initialized")

	deps := &http.Deps{
		NoteService:   service.NewNoteService(noteRepo, responses, scheduler, cfg.NotesCacheTTL),
		SearchService: service.NewSearchService(ragEngine, responses, cfg.SearchCacheTTL),
		TaskService:   service.NewTaskService(taskRepo),
		HealthChecks: map[string]handlers.Pinger{
			"database": handlers.PingFunc(db.PingContext),
			"cache":    responses,
		},
		SearchRateLimit: cfg.SearchRateLimit,
	}
	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           http.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Starting API server", "addr", server.Addr)
		slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	if err := scheduler.Close(shutdownCtx); err != nil {
		slog.Error("Pending index rebuilds did not finish", "error", err)
	}
	slog.Info("Shutdown complete")
}
