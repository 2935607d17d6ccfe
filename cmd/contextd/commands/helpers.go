package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/notely-ai/contextd/internal/catalog"
	"github.com/notely-ai/contextd/internal/config"
	"github.com/notely-ai/contextd/internal/embedder"
	"github.com/notely-ai/contextd/internal/index"
	"github.com/notely-ai/contextd/internal/queue"
)

// embedderConfigFromEnv resolves the embedding backend settings.
func embedderConfigFromEnv() embedder.Config {
	return embedder.Config{
		Provider:   config.EnvStr("EMBEDDING_PROVIDER", "ollama"),
		Model:      os.Getenv("EMBEDDING_MODEL"),
		Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		Dimensions: config.EnvInt("EMBEDDING_DIMENSIONS", 0),
		BatchSize:  config.EnvInt("EMBEDDING_BATCH_SIZE", 0),
		APIVersion: os.Getenv("EMBEDDING_API_VERSION"),
	}
}

// buildEmbedder constructs the configured embedding backend wrapped in a
// worker pool. The returned release func must be called on shutdown.
func buildEmbedder(log *slog.Logger) (embedder.Embedder, func(), error) {
	cfg := embedderConfigFromEnv()
	base, err := embedder.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	pool, err := embedder.NewPool(base, config.EnvInt("EMBEDDING_WORKERS", 0))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedding pool: %w", err)
	}

	log.Info("embedder initialised",
		slog.String("provider", cfg.Provider),
		slog.Int("dimensions", cfg.DefaultDimensions()),
	)
	return pool, pool.Release, nil
}

// buildIndex connects to Qdrant, sized to the embedding dimensionality.
func buildIndex(ctx context.Context, log *slog.Logger) (index.VectorIndex, error) {
	embCfg := embedderConfigFromEnv()

	cfg := &index.QdrantConfig{
		Host:       config.EnvStr("QDRANT_HOST", "localhost"),
		Port:       config.EnvInt("QDRANT_PORT", 6334),
		Collection: config.EnvStr("QDRANT_COLLECTION", "contextd-chunks"),
		VectorSize: uint64(embCfg.DefaultDimensions()), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     config.EnvBool("QDRANT_TLS", false),
	}

	idx, err := index.NewQdrantIndex(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	log.Info("qdrant index ready",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("collection", cfg.Collection),
	)
	return idx, nil
}

// buildQueue connects to the Redis Streams event queue.
func buildQueue(ctx context.Context, log *slog.Logger) (*queue.RedisQueue, error) {
	cfg := &queue.RedisConfig{
		Addr:       config.EnvStr("REDIS_ADDR", "localhost:6379"),
		Password:   os.Getenv("REDIS_PASSWORD"),
		DB:         config.EnvInt("REDIS_DB", 0),
		Stream:     config.EnvStr("QUEUE_STREAM", "contextd:file-events"),
		Group:      config.EnvStr("QUEUE_GROUP", "contextd"),
		Consumer:   config.EnvStr("QUEUE_CONSUMER", defaultConsumerName()),
		Visibility: time.Duration(config.EnvInt("QUEUE_VISIBILITY_SECONDS", 30)) * time.Second,
	}

	q, err := queue.NewRedisQueue(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	log.Info("queue ready",
		slog.String("addr", cfg.Addr),
		slog.String("stream", cfg.Stream),
		slog.String("group", cfg.Group),
	)
	return q, nil
}

// openCatalog opens the file metadata store. CONTEXTD_CATALOG_DB overrides
// the default path (~/.contextd/catalog.db). Set to "disabled" to run
// without one; a nil catalog is returned and status reporting is skipped.
func openCatalog(log *slog.Logger) (catalog.FileCatalog, func(), error) {
	dbPath := os.Getenv("CONTEXTD_CATALOG_DB")
	if dbPath == "disabled" {
		log.Info("catalog: disabled via CONTEXTD_CATALOG_DB=disabled")
		return nil, func() {}, nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = catalog.DefaultDBPath()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve catalog path: %w", err)
		}
	}

	cat, err := catalog.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog at %s: %w", dbPath, err)
	}
	log.Info("catalog: store opened", slog.String("path", dbPath))
	return cat, func() { _ = cat.Close() }, nil
}

// defaultConsumerName derives a per-host consumer name so multiple instances
// in the same group do not steal each other's pending entries.
func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "contextd-1"
	}
	return "contextd-" + host
}
