// Package embedder converts text into embedding vectors for semantic search.
// It supports multiple backends (Ollama, OpenAI, Azure OpenAI) behind a
// single interface, plus a worker pool wrapper that bounds concurrent
// embedding load. Backends batch large inputs transparently.
package embedder

import (
	"context"
	"errors"
)

// ErrEmbedding is the sentinel wrapped by every runtime embedding failure
// (transport errors, backend rejections, shape mismatches). Callers use it to
// classify retrieval/ingestion failures as transient.
var ErrEmbedding = errors.New("embedder: embedding failed")

// DefaultBatchSize is the number of texts sent per backend request when no
// explicit batch size is configured.
const DefaultBatchSize = 16

// Embedder converts a batch of texts into embedding vectors.
// Implementations must return one vector per input text, in input order, and
// must be safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding vectors for texts, parallel to the input.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// embedBatched splits texts into batches of at most batchSize and feeds them
// to fn sequentially, concatenating the results in input order. A
// non-positive batchSize falls back to DefaultBatchSize.
func embedBatched(ctx context.Context, texts []string, batchSize int, fn func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
