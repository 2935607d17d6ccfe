package embedder

import (
	"context"
	"fmt"
	"runtime"

	"github.com/panjf2000/ants/v2"
)

// Pool wraps an Embedder and dispatches every Embed call onto a bounded
// worker pool. The calling goroutine only waits on a channel, so a consumer
// servicing queue polls (or a query handler) is never blocked by the
// CPU/accelerator-bound embedding work itself, and total concurrent embedding
// load is capped by the pool size.
type Pool struct {
	// inner performs the actual embedding.
	inner Embedder
	// pool bounds concurrent embedding calls.
	pool *ants.Pool
}

// NewPool constructs a Pool of the given size around inner. A non-positive
// size defaults to half the CPU count, with a minimum of 1.
func NewPool(inner Embedder, size int) (*Pool, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedder: pool requires an inner embedder")
	}
	if size < 1 {
		size = runtime.NumCPU() / 2
		if size < 1 {
			size = 1
		}
	}

	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("embedder: create worker pool: %w", err)
	}
	return &Pool{inner: inner, pool: p}, nil
}

// embedResult carries one Embed outcome back from a pool worker.
type embedResult struct {
	vectors [][]float32
	err     error
}

// Embed submits the call to the worker pool and waits for completion or
// context cancellation. On cancellation the worker finishes in the
// background; its result is discarded.
func (p *Pool) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ch := make(chan embedResult, 1)

	if err := p.pool.Submit(func() {
		vectors, err := p.inner.Embed(ctx, texts)
		ch <- embedResult{vectors: vectors, err: err}
	}); err != nil {
		return nil, fmt.Errorf("%w: submit to worker pool: %v", ErrEmbedding, err)
	}

	select {
	case r := <-ch:
		return r.vectors, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release shuts the worker pool down. Pending submissions are rejected.
func (p *Pool) Release() {
	p.pool.Release()
}
