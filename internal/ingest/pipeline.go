// Package ingest implements the file ingestion pipeline: download the file
// from object storage, extract plain text, chunk it, embed each chunk, and
// upsert the results into the vector index. The pipeline is invoked by the
// queue consumer for create/update events and directly by the `contextd
// ingest` CLI command.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/notely-ai/contextd/internal/blob"
	"github.com/notely-ai/contextd/internal/chunker"
	"github.com/notely-ai/contextd/internal/embedder"
	"github.com/notely-ai/contextd/internal/extractor"
	"github.com/notely-ai/contextd/internal/index"
)

// FileRef identifies one file to ingest or remove.
type FileRef struct {
	// WorkspaceID is the workspace the file belongs to.
	WorkspaceID int64

	// FileID is the external file identifier.
	FileID int64

	// StorageKey is the object-storage key the content is downloaded from.
	StorageKey string

	// FileName is the display name recorded in chunk metadata. When empty it
	// is derived from the storage key's base name.
	FileName string
}

// Config holds the chunking parameters for the pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to chunker.DefaultMaxSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared between consecutive
	// chunks. Defaults to chunker.DefaultOverlap if zero.
	ChunkOverlap int
}

// Pipeline orchestrates the download → extract → chunk → embed → upsert flow
// for one file at a time. Steps within one call are strictly sequential —
// each depends on the previous step's output. Safe for concurrent use across
// files.
type Pipeline struct {
	// blobs resolves storage keys to file bytes.
	blobs blob.Store

	// extract converts file bytes into plain text.
	extract extractor.Extractor

	// splitter chunks extracted text.
	splitter *chunker.Splitter

	// embed converts chunk batches into embeddings.
	embed embedder.Embedder

	// idx is the durable chunk store.
	idx index.VectorIndex

	// log is the structured logger for pipeline progress.
	log *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(blobs blob.Store, extract extractor.Extractor, embed embedder.Embedder, idx index.VectorIndex, cfg *Config, log *slog.Logger) (*Pipeline, error) {
	if blobs == nil {
		return nil, fmt.Errorf("ingest: blob store must not be nil")
	}
	if extract == nil {
		return nil, fmt.Errorf("ingest: extractor must not be nil")
	}
	if embed == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if idx == nil {
		return nil, fmt.Errorf("ingest: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		blobs:    blobs,
		extract:  extract,
		splitter: chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		embed:    embed,
		idx:      idx,
		log:      log,
	}, nil
}

// ChunkID composes the deterministic chunk identifier for a file's i-th
// chunk. Re-ingesting a file reproduces the same ids, which is what makes
// upserts overwrite stale chunks instead of duplicating them.
func ChunkID(fileID int64, i int) string {
	return fmt.Sprintf("%d_%d", fileID, i)
}

// Create runs the full ingestion path for a file and returns the number of
// chunks upserted. Validation failures (empty file, unsupported type) pass
// through unwrapped so the caller can classify them as non-retryable.
func (p *Pipeline) Create(ctx context.Context, ref FileRef) (int, error) {
	name := ref.FileName
	if name == "" {
		name = path.Base(ref.StorageKey)
	}

	data, err := p.blobs.Download(ctx, ref.StorageKey)
	if err != nil {
		return 0, fmt.Errorf("ingest: download %s: %w", ref.StorageKey, err)
	}

	text, err := p.extract.Extract(name, data)
	if err != nil {
		return 0, fmt.Errorf("ingest: extract %s: %w", name, err)
	}

	texts, err := p.splitter.Split(text)
	if err != nil {
		return 0, fmt.Errorf("ingest: chunk %s: %w", name, err)
	}

	vectors, err := p.embed.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("ingest: embed %s: %w", name, err)
	}

	chunks := make([]index.Chunk, 0, len(texts))
	for i, t := range texts {
		chunks = append(chunks, index.Chunk{
			ID:   ChunkID(ref.FileID, i),
			Text: t,
			Meta: index.Metadata{
				WorkspaceID: ref.WorkspaceID,
				FileID:      ref.FileID,
				FileName:    name,
				ChunkIndex:  i,
				StorageKey:  ref.StorageKey,
			},
		})
	}

	if err := p.idx.Upsert(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("ingest: upsert %s: %w", name, err)
	}

	p.log.Info("ingest: file indexed",
		slog.Int64("workspace_id", ref.WorkspaceID),
		slog.Int64("file_id", ref.FileID),
		slog.String("file", name),
		slog.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

// Update replaces a file's chunk set: the prior chunks are deleted by filter,
// then the create path runs. If the create fails after the delete, the file
// is left with zero chunks until a retry succeeds — stale chunks never
// survive a successful update.
func (p *Pipeline) Update(ctx context.Context, ref FileRef) (deleted, created int, err error) {
	deleted, err = p.Delete(ctx, ref.WorkspaceID, ref.FileID)
	if err != nil {
		return 0, 0, err
	}

	created, err = p.Create(ctx, ref)
	if err != nil {
		return deleted, 0, err
	}
	return deleted, created, nil
}

// Delete removes every chunk belonging to the file and returns the count.
// Deleting a file with no chunks is a no-op, not an error.
func (p *Pipeline) Delete(ctx context.Context, workspaceID, fileID int64) (int, error) {
	n, err := p.idx.DeleteByFilter(ctx, index.ByFile(workspaceID, fileID))
	if err != nil {
		return 0, fmt.Errorf("ingest: delete chunks of file %d: %w", fileID, err)
	}
	if n > 0 {
		p.log.Info("ingest: chunks removed",
			slog.Int64("workspace_id", workspaceID),
			slog.Int64("file_id", fileID),
			slog.Int("chunks", n),
		)
	}
	return n, nil
}
