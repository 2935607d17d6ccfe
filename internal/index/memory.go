package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-memory VectorIndex using brute-force cosine similarity.
// It backs unit tests and local development where no Qdrant instance is
// available. Safe for concurrent use.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// memoryEntry pairs a stored chunk with its embedding vector.
type memoryEntry struct {
	chunk  Chunk
	vector []float32
}

// NewMemoryIndex constructs an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]memoryEntry)}
}

// Upsert inserts or overwrites a batch of chunks keyed by chunk id.
func (s *MemoryIndex) Upsert(_ context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrEmptyBatch, len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		v := make([]float32, len(vectors[i]))
		copy(v, vectors[i])
		s.entries[c.ID] = memoryEntry{chunk: c, vector: v}
	}
	return nil
}

// Query returns the topK filter-matching chunks ranked by cosine similarity.
func (s *MemoryIndex) Query(_ context.Context, vector []float32, topK int, filter Filter) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	results := make([]Result, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.Matches(e.chunk.Meta) {
			continue
		}
		results = append(results, Result{
			ID:    e.chunk.ID,
			Text:  e.chunk.Text,
			Meta:  e.chunk.Meta,
			Score: cosine(vector, e.vector),
		})
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID // stable order for equal scores
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteByFilter removes every chunk matching the filter. The zero filter is
// rejected rather than emptying the index.
func (s *MemoryIndex) DeleteByFilter(_ context.Context, filter Filter) (int, error) {
	if filter.IsZero() {
		return 0, ErrEmptyFilter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if filter.Matches(e.chunk.Meta) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored chunks. Intended for tests.
func (s *MemoryIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close is a no-op for the in-memory index.
func (s *MemoryIndex) Close() error { return nil }

// cosine computes the cosine similarity between two vectors. Vectors of
// mismatched length are compared over the shorter prefix.
func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
