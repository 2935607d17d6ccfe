package commands

import (
	"fmt"
	"log/slog"
	"path"

	"github.com/spf13/cobra"

	"github.com/notely-ai/contextd/internal/blob"
	"github.com/notely-ai/contextd/internal/catalog"
	"github.com/notely-ai/contextd/internal/config"
	"github.com/notely-ai/contextd/internal/extractor"
	"github.com/notely-ai/contextd/internal/ingest"
	"github.com/notely-ai/contextd/internal/logging"
)

// NewIngestCmd constructs the `contextd ingest` command, which runs the
// ingestion pipeline one-shot for a single file, bypassing the queue.
func NewIngestCmd() *cobra.Command {
	var workspaceID int64
	var fileID int64
	var conversationID int64
	var storageKey string
	var fileName string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed, and index a single file",
		Long: `Run the ingestion pipeline for one file without going through the queue.

The file content is read from BLOB_DIR under the given --key, split into
overlapping chunks, embedded, and upserted into the Qdrant collection. Any
chunks previously indexed for the same file id are replaced. The file is
also registered in the local catalog so conversation-scoped queries find it.

Useful for backfills and for verifying the pipeline against a live backend.

Examples:
  contextd ingest --workspace 1 --file-id 42 --key docs/handbook.pdf
  contextd ingest --workspace 1 --file-id 42 --key docs/handbook.pdf --conversation 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if workspaceID <= 0 || fileID <= 0 {
				return fmt.Errorf("ingest: --workspace and --file-id must be positive")
			}
			if storageKey == "" {
				return fmt.Errorf("ingest: --key is required")
			}
			if fileName == "" {
				fileName = path.Base(storageKey)
			}

			blobDir := config.EnvStr("BLOB_DIR", "")
			if blobDir == "" {
				return fmt.Errorf("ingest: BLOB_DIR must be set")
			}
			blobs, err := blob.NewFSStore(blobDir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, releaseEmb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer releaseEmb()

			idx, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = idx.Close() }()

			cat, closeCat, err := openCatalog(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeCat()

			pipeline, err := ingest.NewPipeline(blobs, extractor.New(), emb, idx, &ingest.Config{
				ChunkSize:    config.EnvInt("INGEST_CHUNK_SIZE", 0),
				ChunkOverlap: config.EnvInt("INGEST_CHUNK_OVERLAP", 0),
			}, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			deleted, created, err := pipeline.Update(ctx, ingest.FileRef{
				WorkspaceID: workspaceID,
				FileID:      fileID,
				StorageKey:  storageKey,
				FileName:    fileName,
			})
			if err != nil {
				if cat != nil {
					_ = cat.SetStatus(ctx, fileID, catalog.StatusFailed)
				}
				return fmt.Errorf("ingest: %w", err)
			}

			if cat != nil {
				if err := cat.Upsert(ctx, catalog.File{
					ID:             fileID,
					WorkspaceID:    workspaceID,
					ConversationID: conversationID,
					Name:           fileName,
					StorageKey:     storageKey,
					Status:         catalog.StatusCompleted,
				}); err != nil {
					log.Warn("ingest: catalog update failed", slog.String("error", err.Error()))
				}
			}

			log.Info("ingest complete",
				slog.Int64("file_id", fileID),
				slog.Int("chunks_replaced", deleted),
				slog.Int("chunks_indexed", created),
			)
			fmt.Printf("indexed %d chunks for file %d (%s)\n", created, fileID, fileName)
			return nil
		},
	}

	cmd.Flags().Int64Var(&workspaceID, "workspace", 0, "Workspace id the file belongs to")
	cmd.Flags().Int64Var(&fileID, "file-id", 0, "External file id")
	cmd.Flags().Int64Var(&conversationID, "conversation", 0, "Conversation id to attach the file to (optional)")
	cmd.Flags().StringVarP(&storageKey, "key", "k", "", "Storage key of the file content under BLOB_DIR")
	cmd.Flags().StringVarP(&fileName, "name", "n", "", "Display file name (default: base of --key)")

	return cmd
}
