package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort   string
	DBPath    string
	LogLevel  slog.Level
	LogFormat string

	EmbeddingBaseURL    string
	EmbeddingModelName  string
	EmbeddingDimensions int
	EmbeddingCacheSize  int
	LLMBaseURL          string
	LLMModelName        string
	LLMAPIKey           string
	ProviderRateLimit   float64

	ChunkSize          int
	ChunkOverlap       int
	IndexM             int
	IndexEfSearch      int
	RebuildConcurrency int
	RebuildTimeout     time.Duration

	RedisURL        string
	CacheMaxEntries int
	SearchCacheTTL  time.Duration
	NotesCacheTTL   time.Duration
	SearchRateLimit int
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates ranges.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "9000"),
		DBPath:             getEnv("DB_PATH", "./data/diary.db"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", ""),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "text-embedding-ada-002"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", ""),
		LLMModelName:       getEnv("LLM_MODEL", "gpt-4-turbo"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	ints := []struct {
		key      string
		def      int
		min, max int
		dst      *int
	}{
		{"EMBEDDING_DIMENSIONS", 1536, 1, 1 << 16, &cfg.EmbeddingDimensions},
		{"EMBEDDING_CACHE_SIZE", 4096, 1, 1 << 24, &cfg.EmbeddingCacheSize},
		{"RAG_CHUNK_SIZE", 512, 100, 2000, &cfg.ChunkSize},
		{"RAG_OVERLAP", 50, 0, 200, &cfg.ChunkOverlap},
		{"INDEX_M", 32, 2, 256, &cfg.IndexM},
		{"INDEX_EF_SEARCH", 200, 1, 10000, &cfg.IndexEfSearch},
		{"REBUILD_CONCURRENCY", 2, 1, 64, &cfg.RebuildConcurrency},
		{"CACHE_MAX_ENTRIES", 10000, 1, 1 << 24, &cfg.CacheMaxEntries},
		{"SEARCH_RATE_LIMIT", 1000, 0, 1 << 24, &cfg.SearchRateLimit},
	}
	for _, v := range ints {
		n, err := getInt(v.key, v.def)
		if err != nil {
			return nil, err
		}
		if n < v.min || n > v.max {
			return nil, fmt.Errorf("%s must be between %d and %d, got %d", v.key, v.min, v.max, n)
		}
		*v.dst = n
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("RAG_OVERLAP (%d) must be smaller than RAG_CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"REBUILD_TIMEOUT", 5 * time.Minute, &cfg.RebuildTimeout},
		{"SEARCH_CACHE_TTL", 300 * time.Second, &cfg.SearchCacheTTL},
		{"NOTES_CACHE_TTL", 60 * time.Second, &cfg.NotesCacheTTL},
	}
	for _, v := range durations {
		d, err := getDuration(v.key, v.def)
		if err != nil {
			return nil, err
		}
		*v.dst = d
	}

	rps, err := strconv.ParseFloat(getEnv("PROVIDER_RATE_LIMIT", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("PROVIDER_RATE_LIMIT must be a number: %w", err)
	}
	cfg.ProviderRateLimit = rps

	// Create the database directory if it doesn't exist
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads .env from the current directory, then from the nearest
// ancestor that has one. Existing variables are never overridden.
func loadDotEnv() {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return // Reached filesystem root
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

// getDuration accepts Go duration syntax ("90s", "5m") or a bare number of seconds.
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("%s must be positive", key)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration or a number of seconds: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
