package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/notely-ai/contextd/internal/blob"
	"github.com/notely-ai/contextd/internal/config"
	"github.com/notely-ai/contextd/internal/consumer"
	"github.com/notely-ai/contextd/internal/extractor"
	"github.com/notely-ai/contextd/internal/ingest"
	"github.com/notely-ai/contextd/internal/logging"
)

// NewConsumeCmd constructs the `contextd consume` command: the long-lived
// worker that keeps the vector index in sync with file events.
func NewConsumeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Run the file-event consumer worker",
		Long: `Poll the event queue for file create/update/delete events and apply them
to the vector index: download, extract, chunk, embed, upsert. Runs until
interrupted; the batch in flight at shutdown is finished before exit.

Required environment variables:
  REDIS_ADDR           Redis address for the event stream (default: localhost:6379)
  BLOB_DIR             Root directory file content is resolved under
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: contextd-chunks)
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  contextd consume
  contextd consume --metrics-addr :9102
  BLOB_DIR=/data/files contextd consume`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			blobDir := config.EnvStr("BLOB_DIR", "")
			if blobDir == "" {
				return fmt.Errorf("consume: BLOB_DIR must be set")
			}
			blobs, err := blob.NewFSStore(blobDir)
			if err != nil {
				return fmt.Errorf("consume: %w", err)
			}

			emb, releaseEmb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("consume: %w", err)
			}
			defer releaseEmb()

			idx, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("consume: %w", err)
			}
			defer func() { _ = idx.Close() }()

			q, err := buildQueue(ctx, log)
			if err != nil {
				return fmt.Errorf("consume: %w", err)
			}
			defer func() { _ = q.Close() }()

			cat, closeCat, err := openCatalog(log)
			if err != nil {
				return fmt.Errorf("consume: %w", err)
			}
			defer closeCat()

			pipeline, err := ingest.NewPipeline(blobs, extractor.New(), emb, idx, &ingest.Config{
				ChunkSize:    config.EnvInt("INGEST_CHUNK_SIZE", 0),
				ChunkOverlap: config.EnvInt("INGEST_CHUNK_OVERLAP", 0),
			}, log)
			if err != nil {
				return fmt.Errorf("consume: %w", err)
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			cons, err := consumer.New(q, pipeline, cat, &consumer.Config{
				BatchSize:      config.EnvInt("CONSUMER_BATCH_SIZE", 0),
				ReceiveWait:    time.Duration(config.EnvInt("CONSUMER_RECEIVE_WAIT_SECONDS", 0)) * time.Second,
				HandlerTimeout: time.Duration(config.EnvInt("CONSUMER_HANDLER_TIMEOUT_SECONDS", 0)) * time.Second,
			}, reg, log)
			if err != nil {
				return fmt.Errorf("consume: %w", err)
			}

			stopMetrics := startMetricsServer(ctx, metricsAddr, reg, log)
			defer stopMetrics()

			return cons.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9102", "Bind address for the Prometheus /metrics endpoint (empty to disable)")

	return cmd
}

// startMetricsServer exposes reg on /metrics until ctx is cancelled. The
// returned func blocks until the listener has shut down.
func startMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry, log *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("metrics: listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics: listener failed", slog.String("error", err.Error()))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-done
	}
}
