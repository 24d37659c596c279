package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for a memory agent.
//
// Example:
//
//	config := &core.Config{
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-ada-002",
//	        Dimensions: 1536,
//	        Fallback:   true,
//	    },
//	    Storage: core.StorageConfig{
//	        Provider: "sqlite",
//	        Path:     "./memories",
//	    },
//	}
type Config struct {
	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// Storage contains collection storage configuration.
	Storage StorageConfig `json:"storage"`

	// Ingest contains ingestion pipeline configuration.
	Ingest IngestConfig `json:"ingest"`

	// Retrieval contains retrieval engine configuration.
	Retrieval RetrievalConfig `json:"retrieval"`

	// Rerank contains contextual re-ranking configuration.
	Rerank RerankConfig `json:"rerank"`

	// Metrics contains metrics configuration.
	Metrics MetricsConfig `json:"metrics"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, local
type EmbedderConfig struct {
	// Provider is the embedding provider name (openai, local).
	Provider string `json:"provider"`

	// APIKey is the API key for remote providers.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-ada-002").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default
	// if empty).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536, 384).
	Dimensions int `json:"dimensions,omitempty"`

	// Fallback enables falling back to the local provider when the remote
	// provider is unavailable or rate limited.
	Fallback bool `json:"fallback,omitempty"`
}

// StorageConfig contains configuration for collection storage.
//
// Supported providers: sqlite, postgres
type StorageConfig struct {
	// Provider is the storage provider name (sqlite, postgres).
	Provider string `json:"provider"`

	// Path is the directory holding per-collection SQLite database files.
	// Used by the sqlite provider.
	Path string `json:"path,omitempty"`

	// Host, Port, User, Password, Database and SSLMode configure the
	// postgres provider.
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Database string `json:"database,omitempty"`
	SSLMode  string `json:"ssl_mode,omitempty"`

	// IndexType selects an approximate vector index ("hnsw" or "ivfflat")
	// created on each postgres collection at startup. Empty keeps exact
	// sequential scans, which are fine for small collections.
	IndexType string `json:"index_type,omitempty"`
}

// IngestConfig contains configuration for the ingestion pipeline.
type IngestConfig struct {
	// MaxBatchSize closes a batch at this many items. Default 10.
	MaxBatchSize int `json:"max_batch_size,omitempty"`

	// MaxBatchWait closes a batch this long after its oldest item arrived.
	// Default 5s.
	MaxBatchWait time.Duration `json:"max_batch_wait,omitempty"`

	// MaxRetries bounds embedding retries per batch. Default 3.
	MaxRetries int `json:"max_retries,omitempty"`

	// QueueSize is the submission queue capacity. Default 1024.
	QueueSize int `json:"queue_size,omitempty"`
}

// RetrievalConfig contains configuration for the retrieval engine.
type RetrievalConfig struct {
	// Threshold is the minimum similarity for plain search results.
	// Default 0.7.
	Threshold float64 `json:"threshold,omitempty"`

	// ContextualThreshold is the broadened minimum similarity used when
	// candidates will be re-ranked by context. Default 0.5.
	ContextualThreshold float64 `json:"contextual_threshold,omitempty"`

	// DefaultLimit caps results when a query does not set a limit.
	// Default 10.
	DefaultLimit int `json:"default_limit,omitempty"`
}

// RerankConfig contains configuration for contextual re-ranking.
//
// Zero values fall back to the documented defaults: file 0.4 (directory 0.2),
// project 0.3, branch 0.2, language 0.1, blended as 0.7 similarity + 0.3
// context.
type RerankConfig struct {
	FileWeight      float64 `json:"file_weight,omitempty"`
	DirectoryWeight float64 `json:"directory_weight,omitempty"`
	ProjectWeight   float64 `json:"project_weight,omitempty"`
	BranchWeight    float64 `json:"branch_weight,omitempty"`
	LanguageWeight  float64 `json:"language_weight,omitempty"`

	SimilarityBlend float64 `json:"similarity_blend,omitempty"`
	ContextBlend    float64 `json:"context_blend,omitempty"`
}

// MetricsConfig contains configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metric collection on. Disabled managers are no-ops.
	Enabled bool `json:"enabled"`
}

// DefaultConfig returns a configuration with the local embedder and SQLite
// storage under ./devmem, suitable for offline use and tests.
func DefaultConfig() *Config {
	return &Config{
		Embedder: EmbedderConfig{
			Provider: "local",
		},
		Storage: StorageConfig{
			Provider: "sqlite",
			Path:     "./devmem",
		},
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for a .env file (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - STORAGE_PROVIDER (sqlite, postgres), SQLITE_PATH
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD,
//     POSTGRES_DATABASE, POSTGRES_SSLMODE, POSTGRES_INDEX_TYPE
//   - EMBEDDING_PROVIDER (openai, local), EMBEDDING_API_KEY,
//     EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMS,
//     EMBEDDING_FALLBACK
//   - INGEST_BATCH_SIZE, INGEST_BATCH_WAIT, INGEST_QUEUE_SIZE
//   - RETRIEVAL_THRESHOLD, METRICS_ENABLED
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	cfg.Storage.Provider = getEnvOrDefault("STORAGE_PROVIDER", "sqlite")
	switch cfg.Storage.Provider {
	case "sqlite":
		cfg.Storage.Path = getEnvOrDefault("SQLITE_PATH", "./devmem")
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		cfg.Storage.Host = getEnvOrDefault("POSTGRES_HOST", "localhost")
		cfg.Storage.Port = port
		cfg.Storage.User = getEnvOrDefault("POSTGRES_USER", "postgres")
		cfg.Storage.Password = os.Getenv("POSTGRES_PASSWORD")
		cfg.Storage.Database = getEnvOrDefault("POSTGRES_DATABASE", "devmem")
		cfg.Storage.SSLMode = getEnvOrDefault("POSTGRES_SSLMODE", "disable")
		cfg.Storage.IndexType = os.Getenv("POSTGRES_INDEX_TYPE")
	}

	cfg.Embedder.Provider = getEnvOrDefault("EMBEDDING_PROVIDER", "local")
	cfg.Embedder.APIKey = os.Getenv("EMBEDDING_API_KEY")
	cfg.Embedder.Model = os.Getenv("EMBEDDING_MODEL")
	cfg.Embedder.BaseURL = os.Getenv("EMBEDDING_BASE_URL")
	if dims, err := strconv.Atoi(os.Getenv("EMBEDDING_DIMS")); err == nil {
		cfg.Embedder.Dimensions = dims
	}
	cfg.Embedder.Fallback = os.Getenv("EMBEDDING_FALLBACK") == "true"

	if size, err := strconv.Atoi(os.Getenv("INGEST_BATCH_SIZE")); err == nil {
		cfg.Ingest.MaxBatchSize = size
	}
	if wait, err := time.ParseDuration(os.Getenv("INGEST_BATCH_WAIT")); err == nil {
		cfg.Ingest.MaxBatchWait = wait
	}
	if size, err := strconv.Atoi(os.Getenv("INGEST_QUEUE_SIZE")); err == nil {
		cfg.Ingest.QueueSize = size
	}

	if threshold, err := strconv.ParseFloat(os.Getenv("RETRIEVAL_THRESHOLD"), 64); err == nil {
		cfg.Retrieval.Threshold = threshold
	}

	cfg.Metrics.Enabled = os.Getenv("METRICS_ENABLED") == "true"

	return cfg, nil
}

// LoadConfigFromJSON loads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Embedder.Provider {
	case "openai":
		if c.Embedder.APIKey == "" {
			return fmt.Errorf("%w: embedder api key is required for openai", ErrInvalidConfig)
		}
	case "local", "":
	default:
		return fmt.Errorf("%w: unknown embedder provider %q", ErrInvalidConfig, c.Embedder.Provider)
	}

	switch c.Storage.Provider {
	case "sqlite", "":
	case "postgres":
		if c.Storage.Database == "" {
			return fmt.Errorf("%w: postgres database name is required", ErrInvalidConfig)
		}
		switch c.Storage.IndexType {
		case "", "hnsw", "ivfflat":
		default:
			return fmt.Errorf("%w: unknown index type %q", ErrInvalidConfig, c.Storage.IndexType)
		}
	default:
		return fmt.Errorf("%w: unknown storage provider %q", ErrInvalidConfig, c.Storage.Provider)
	}

	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("%w: retrieval threshold must be within [0, 1]", ErrInvalidConfig)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for a .env file in the current directory and up to
// five parent directories. Returns the path and whether it was found.
func FindEnvFile() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}

	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, ".env")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
