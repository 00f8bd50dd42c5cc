// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
)

// Config holds all runtime configuration for the advisor service.
// Values are read from environment variables with sensible defaults;
// the mains load a .env file first via godotenv for local development.
type Config struct {
	// Qdrant connection (gRPC).
	QdrantHost string
	QdrantPort int

	// OpenAI-compatible model settings.
	OpenAIAPIKey   string
	EmbeddingModel string
	ChatModel      string

	// Corpus ingestion.
	DataDir      string
	ChunkSize    int
	ChunkOverlap int

	// Optional GitHub corpus source ("owner/repo"). Empty disables it.
	GitHubRepo     string
	GitHubBasePath string
	GitHubToken    string

	// Retrieval bounds.
	DefaultTopK int
	MaxTopK     int

	// History database directory (SQLite file lives inside).
	HistoryDir string

	// HTTP listen port.
	Port string
}

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the overlap between consecutive chunks.
	DefaultChunkOverlap = 200

	// DefaultTopK is the number of passages retrieved when the caller
	// does not specify one.
	DefaultTopK = 5

	// DefaultMaxTopK bounds top_k to keep retrieval latency and
	// generation context size predictable.
	DefaultMaxTopK = 20
)

// FromEnv builds a Config from environment variables.
// It returns an error only for settings that have no usable default.
func FromEnv() (*Config, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	cfg := &Config{
		QdrantHost:     getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:     getEnvInt("QDRANT_PORT", 6334),
		OpenAIAPIKey:   apiKey,
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		ChatModel:      getEnv("CHAT_MODEL", "gpt-4o-mini"),
		DataDir:        getEnv("DATA_DIR", "data"),
		ChunkSize:      getEnvInt("CHUNK_SIZE", DefaultChunkSize),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", DefaultChunkOverlap),
		GitHubRepo:     os.Getenv("GITHUB_CORPUS_REPO"),
		GitHubBasePath: getEnv("GITHUB_CORPUS_PATH", "docs"),
		GitHubToken:    os.Getenv("GITHUB_TOKEN"),
		DefaultTopK:    getEnvInt("TOP_K", DefaultTopK),
		MaxTopK:        getEnvInt("MAX_TOP_K", DefaultMaxTopK),
		HistoryDir:     getEnv("HISTORY_DIR", "data"),
		Port:           getEnv("PORT", "8080"),
	}

	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", cfg.ChunkOverlap)
	}
	if cfg.MaxTopK < 1 {
		return nil, fmt.Errorf("MAX_TOP_K must be at least 1, got %d", cfg.MaxTopK)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
