package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// stubEmbedder returns a fixed-dimension vector derived from each text's
// length, so outputs are deterministic and order-checkable.
type stubEmbedder struct {
	calls int32
	delay time.Duration
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func TestPool_EmbedPreservesOrder(t *testing.T) {
	t.Parallel()

	p, err := NewPool(&stubEmbedder{}, 2)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Release()

	texts := []string{"a", "bb", "ccc", "dddd"}
	vectors, err := p.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if v[0] != float32(len(texts[i])) {
			t.Errorf("vector %d out of order: got %v for text %q", i, v, texts[i])
		}
	}
}

func TestPool_EmbedPropagatesErrors(t *testing.T) {
	t.Parallel()

	wantErr := fmt.Errorf("%w: backend down", ErrEmbedding)
	p, err := NewPool(&stubEmbedder{err: wantErr}, 1)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Release()

	if _, err := p.Embed(context.Background(), []string{"x"}); !errors.Is(err, ErrEmbedding) {
		t.Errorf("expected ErrEmbedding, got %v", err)
	}
}

func TestPool_EmbedHonoursCancellation(t *testing.T) {
	t.Parallel()

	p, err := NewPool(&stubEmbedder{delay: 200 * time.Millisecond}, 1)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = p.Embed(ctx, []string{"slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Error("Embed did not return promptly on cancellation")
	}
}

func TestNewPool_RequiresInner(t *testing.T) {
	t.Parallel()

	if _, err := NewPool(nil, 1); err == nil {
		t.Error("expected error for nil inner embedder")
	}
}

func TestEmbedBatched_SplitsAndConcatenates(t *testing.T) {
	t.Parallel()

	var batches [][]string
	fn := func(_ context.Context, texts []string) ([][]float32, error) {
		batches = append(batches, texts)
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(len(texts[i]))}
		}
		return out, nil
	}

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := embedBatched(context.Background(), texts, 2, fn)
	if err != nil {
		t.Fatalf("embedBatched failed: %v", err)
	}
	if len(vectors) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(vectors))
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches of size <= 2, got %d", len(batches))
	}
	for i, v := range vectors {
		if v[0] != float32(len(texts[i])) {
			t.Errorf("vector %d does not line up with input %q", i, texts[i])
		}
	}
}
