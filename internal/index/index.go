// Package index defines the vector index abstraction used by the ingestion
// pipeline and the context composer. A VectorIndex stores embedded document
// chunks keyed by a deterministic chunk id and supports metadata-filtered
// similarity search and filter-scoped deletion. Concrete implementations
// (Qdrant, in-memory) satisfy the interface so callers never depend on a
// specific backend.
package index

import (
	"context"
	"errors"
)

// ErrEmptyBatch is returned by Upsert when the chunk or vector slice is empty
// or when the two parallel slices disagree in length.
var ErrEmptyBatch = errors.New("index: empty or mismatched batch")

// ErrEmptyFilter is returned by DeleteByFilter when given the zero Filter.
// A zero filter matches every chunk, which for a delete would wipe the whole
// collection; callers that really want that must do it explicitly against the
// backend.
var ErrEmptyFilter = errors.New("index: delete requires a non-zero filter")

// Metadata is the structured payload stored alongside every chunk. All fields
// mirror the file event that produced the chunk so that queries can be
// filtered by workspace and file.
type Metadata struct {
	// WorkspaceID is the workspace the source file belongs to.
	WorkspaceID int64

	// FileID is the identifier of the source file.
	FileID int64

	// FileName is the display name of the source file.
	FileName string

	// ChunkIndex is the position of this chunk within the source file (0-based).
	ChunkIndex int

	// StorageKey is the object-storage key the file content was read from.
	StorageKey string
}

// Chunk is the unit of storage: a bounded text segment plus its metadata.
// The embedding vector travels separately, parallel to the chunk slice.
type Chunk struct {
	// ID is the deterministic chunk identifier, composed as "<fileID>_<index>".
	// Re-ingesting a file reuses the same ids so stale chunks are overwritten.
	ID string

	// Text is the chunk content.
	Text string

	// Meta is the filterable payload for this chunk.
	Meta Metadata
}

// Result is a single ranked match returned by Query.
type Result struct {
	// ID is the chunk id of the match.
	ID string

	// Text is the stored chunk content.
	Text string

	// Meta is the stored chunk metadata.
	Meta Metadata

	// Score is the cosine similarity score assigned during retrieval.
	Score float32
}

// Filter is a conjunction of exact-match metadata constraints. A zero field
// means "no constraint on that field", so the zero Filter matches everything.
type Filter struct {
	// WorkspaceID constrains matches to one workspace when non-zero.
	WorkspaceID int64

	// FileID constrains matches to one file when non-zero.
	FileID int64
}

// ByWorkspace returns a Filter constrained to a single workspace.
func ByWorkspace(workspaceID int64) Filter {
	return Filter{WorkspaceID: workspaceID}
}

// ByFile returns a Filter constrained to a single file within a workspace.
func ByFile(workspaceID, fileID int64) Filter {
	return Filter{WorkspaceID: workspaceID, FileID: fileID}
}

// IsZero reports whether the filter carries no constraints at all.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Matches reports whether the given metadata satisfies every constraint.
func (f Filter) Matches(m Metadata) bool {
	if f.WorkspaceID != 0 && m.WorkspaceID != f.WorkspaceID {
		return false
	}
	if f.FileID != 0 && m.FileID != f.FileID {
		return false
	}
	return true
}

// VectorIndex is the interface for persisting and searching embedded chunks.
// All operations are idempotent at the chunk-id level: re-upserting an id
// overwrites, deleting a filter with no matches is a no-op. Implementations
// must be safe to call from multiple goroutines — ingestion and retrieval run
// concurrently against the same collection.
type VectorIndex interface {
	// Upsert inserts or overwrites a batch of chunks. vectors must be
	// parallel to chunks — vectors[i] is the embedding for chunks[i].
	// Returns ErrEmptyBatch when either slice is empty or lengths mismatch.
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error

	// Query returns the topK most similar chunks for the given embedding,
	// restricted to chunks whose metadata satisfies the filter.
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error)

	// DeleteByFilter removes every chunk matching the filter and returns the
	// number of chunks removed. Zero matches is not an error; the zero Filter
	// is rejected with ErrEmptyFilter.
	DeleteByFilter(ctx context.Context, filter Filter) (int, error)

	// Close releases any resources held by the index.
	Close() error
}
