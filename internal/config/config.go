// Package config provides YAML-based configuration for contextd.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. CONTEXTD_CONFIG environment variable
//  3. ~/.contextd/config.yaml
//  4. ./contextd.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Queue configures the Redis Streams event queue.
	Queue QueueConfig `yaml:"queue"`

	// Blob configures the object storage the files are downloaded from.
	Blob BlobConfig `yaml:"blob"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Catalog configures the file metadata database.
	Catalog CatalogConfig `yaml:"catalog"`

	// Consumer configures the event poll loop.
	Consumer ConsumerConfig `yaml:"consumer"`

	// Context configures retrieval context assembly.
	Context ContextConfig `yaml:"context"`

	// Ingest configures document chunking.
	Ingest IngestConfig `yaml:"ingest"`

	// Metrics configures the Prometheus metrics listener.
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// QueueConfig holds Redis Streams queue settings.
type QueueConfig struct {
	// Addr is the Redis address (host:port) or a redis:// URL.
	Addr string `yaml:"addr"`
	// Password is the Redis password. Prefer env var REDIS_PASSWORD.
	Password string `yaml:"password"`
	// DB is the Redis database number.
	DB int `yaml:"db"`
	// Stream is the stream key file events are read from.
	Stream string `yaml:"stream"`
	// Group is the consumer group name.
	Group string `yaml:"group"`
	// Consumer is this instance's consumer name within the group.
	Consumer string `yaml:"consumer"`
	// VisibilitySeconds is how long a delivered message stays invisible
	// before it is reclaimed for redelivery.
	VisibilitySeconds int `yaml:"visibility_seconds"`
}

// BlobConfig holds object storage settings.
type BlobConfig struct {
	// Dir is the root directory files are resolved under, keyed by their
	// storage key.
	Dir string `yaml:"dir"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// BatchSize is how many texts are embedded per backend call.
	BatchSize int `yaml:"batch_size"`
	// Workers sizes the concurrent embedding pool.
	Workers int `yaml:"workers"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// CatalogConfig holds file metadata database settings.
type CatalogConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// ConsumerConfig holds poll-loop settings.
type ConsumerConfig struct {
	// BatchSize is the maximum number of messages received per round.
	BatchSize int `yaml:"batch_size"`
	// ReceiveWaitSeconds bounds each long-poll receive.
	ReceiveWaitSeconds int `yaml:"receive_wait_seconds"`
	// HandlerTimeoutSeconds bounds single-message processing.
	HandlerTimeoutSeconds int `yaml:"handler_timeout_seconds"`
}

// ContextConfig holds context assembly settings.
type ContextConfig struct {
	// TopK is the number of chunks retrieved per file.
	TopK int `yaml:"top_k"`
	// MaxFiles caps how many conversation files are searched.
	MaxFiles int `yaml:"max_files"`
	// MaxChars is the character budget for the assembled context.
	MaxChars int `yaml:"max_chars"`
}

// IngestConfig holds document chunking settings.
type IngestConfig struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the character overlap between adjacent chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// MetricsConfig holds Prometheus listener settings.
type MetricsConfig struct {
	// Addr is the bind address for the /metrics endpoint.
	Addr string `yaml:"addr"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"REDIS_ADDR", func(c *Config) string { return c.Queue.Addr }},
	{"REDIS_PASSWORD", func(c *Config) string { return c.Queue.Password }},
	{"REDIS_DB", func(c *Config) string { return intStr(c.Queue.DB) }},
	{"QUEUE_STREAM", func(c *Config) string { return c.Queue.Stream }},
	{"QUEUE_GROUP", func(c *Config) string { return c.Queue.Group }},
	{"QUEUE_CONSUMER", func(c *Config) string { return c.Queue.Consumer }},
	{"QUEUE_VISIBILITY_SECONDS", func(c *Config) string { return intStr(c.Queue.VisibilitySeconds) }},
	{"BLOB_DIR", func(c *Config) string { return c.Blob.Dir }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_BATCH_SIZE", func(c *Config) string { return intStr(c.Embedding.BatchSize) }},
	{"EMBEDDING_WORKERS", func(c *Config) string { return intStr(c.Embedding.Workers) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"CONTEXTD_CATALOG_DB", func(c *Config) string { return c.Catalog.DBPath }},
	{"CONSUMER_BATCH_SIZE", func(c *Config) string { return intStr(c.Consumer.BatchSize) }},
	{"CONSUMER_RECEIVE_WAIT_SECONDS", func(c *Config) string { return intStr(c.Consumer.ReceiveWaitSeconds) }},
	{"CONSUMER_HANDLER_TIMEOUT_SECONDS", func(c *Config) string { return intStr(c.Consumer.HandlerTimeoutSeconds) }},
	{"CONTEXT_TOP_K", func(c *Config) string { return intStr(c.Context.TopK) }},
	{"CONTEXT_MAX_FILES", func(c *Config) string { return intStr(c.Context.MaxFiles) }},
	{"CONTEXT_MAX_CHARS", func(c *Config) string { return intStr(c.Context.MaxChars) }},
	{"INGEST_CHUNK_SIZE", func(c *Config) string { return intStr(c.Ingest.ChunkSize) }},
	{"INGEST_CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Ingest.ChunkOverlap) }},
	{"METRICS_ADDR", func(c *Config) string { return c.Metrics.Addr }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("CONTEXTD_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".contextd", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("contextd.yaml"); err == nil {
		return "contextd.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}

// EnvStr reads a string env var, returning def when unset or blank.
func EnvStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvInt reads an integer env var, returning def when unset or invalid.
func EnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return def
	}
	return v
}

// EnvBool reads a boolean env var, returning def when unset.
func EnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
