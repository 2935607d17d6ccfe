package consumer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notely-ai/contextd/internal/blob"
	"github.com/notely-ai/contextd/internal/catalog"
	"github.com/notely-ai/contextd/internal/embedder"
	"github.com/notely-ai/contextd/internal/extractor"
	"github.com/notely-ai/contextd/internal/index"
	"github.com/notely-ai/contextd/internal/ingest"
	"github.com/notely-ai/contextd/internal/queue"
)

// stubEmbedder returns one deterministic vector per text, or a fixed error.
type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

// harness wires a consumer against in-memory collaborators.
type harness struct {
	consumer *Consumer
	queue    *queue.MemoryQueue
	index    *index.MemoryIndex
	blobs    *blob.MemStore
	catalog  catalog.FileCatalog
}

func newHarness(t *testing.T, emb embedder.Embedder) *harness {
	t.Helper()

	q := queue.NewMemoryQueue(time.Minute)
	idx := index.NewMemoryIndex()
	blobs := blob.NewMemStore()

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	pipeline, err := ingest.NewPipeline(blobs, extractor.New(), emb, idx, nil, log)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	cons, err := New(q, pipeline, cat, &Config{PollRate: 1000}, prometheus.NewRegistry(), log)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	return &harness{consumer: cons, queue: q, index: idx, blobs: blobs, catalog: cat}
}

// deliverOne enqueues body, receives it, and runs it through the handler.
func (h *harness) deliverOne(t *testing.T, body string) {
	t.Helper()

	h.queue.Enqueue([]byte(body))
	msgs, err := h.queue.Receive(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	h.consumer.handle(context.Background(), msgs[0])
}

func eventBody(typ string, workspaceID, fileID int64, key string) string {
	return fmt.Sprintf(`{"workspaceId":%d,"fileId":%d,"s3Key":%q,"eventType":%q}`,
		workspaceID, fileID, key, typ)
}

func TestConsumer_CreateEventIndexesFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubEmbedder{})
	h.blobs.Put("docs/doc.txt", []byte("Paragraph one.\n\nParagraph two."))

	h.deliverOne(t, eventBody("create", 1, 42, "docs/doc.txt"))

	if h.queue.Unacked() != 0 {
		t.Errorf("successful create must ack: %d unacked", h.queue.Unacked())
	}
	if h.index.Len() == 0 {
		t.Error("expected chunks in the index after create")
	}

	results, err := h.index.Query(context.Background(), []float32{1, 1}, 10, index.ByFile(1, 42))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results scoped to the ingested file")
	}
	if results[0].Meta.FileName != "doc.txt" {
		t.Errorf("file name metadata: got %q, want %q", results[0].Meta.FileName, "doc.txt")
	}

	f, err := h.catalog.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}
	if f.Status != catalog.StatusCompleted {
		t.Errorf("status: got %q, want %q", f.Status, catalog.StatusCompleted)
	}
}

func TestConsumer_UpdateEventReplacesChunks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubEmbedder{})
	h.blobs.Put("docs/doc.txt", []byte("Original content here."))
	h.deliverOne(t, eventBody("create", 1, 42, "docs/doc.txt"))
	before := h.index.Len()

	h.blobs.Put("docs/doc.txt", []byte("Replacement content."))
	h.deliverOne(t, eventBody("update", 1, 42, "docs/doc.txt"))

	if h.queue.Unacked() != 0 {
		t.Errorf("successful update must ack: %d unacked", h.queue.Unacked())
	}
	if h.index.Len() != before {
		t.Errorf("chunk count changed unexpectedly: %d -> %d", before, h.index.Len())
	}

	results, err := h.index.Query(context.Background(), []float32{1, 1}, 10, index.ByFile(1, 42))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) == 0 || results[0].Text != "Replacement content." {
		t.Errorf("stale chunks survived the update: %+v", results)
	}
}

func TestConsumer_DeleteEventRemovesChunks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubEmbedder{})
	h.blobs.Put("docs/doc.txt", []byte("Some content to remove."))
	h.deliverOne(t, eventBody("create", 1, 42, "docs/doc.txt"))
	if h.index.Len() == 0 {
		t.Fatal("setup: expected indexed chunks")
	}

	h.deliverOne(t, eventBody("delete", 1, 42, "docs/doc.txt"))

	if h.queue.Unacked() != 0 {
		t.Errorf("successful delete must ack: %d unacked", h.queue.Unacked())
	}
	if h.index.Len() != 0 {
		t.Errorf("expected empty index after delete, got %d chunks", h.index.Len())
	}

	// Deleting again is idempotent: still acked, still no error surfaced.
	h.deliverOne(t, eventBody("delete", 1, 42, "docs/doc.txt"))
	if h.queue.Unacked() != 0 {
		t.Errorf("repeat delete must ack: %d unacked", h.queue.Unacked())
	}
}

func TestConsumer_MalformedMessageDroppedNotRetried(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubEmbedder{})
	h.deliverOne(t, `{"garbage":`)

	if h.queue.Unacked() != 0 {
		t.Errorf("malformed message must be acked and dropped: %d unacked", h.queue.Unacked())
	}
	if h.index.Len() != 0 {
		t.Error("malformed message must not touch the index")
	}
}

func TestConsumer_UnknownEventTypeDroppedNotRetried(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubEmbedder{})
	h.deliverOne(t, eventBody("archive", 1, 42, "docs/doc.txt"))

	if h.queue.Unacked() != 0 {
		t.Errorf("unknown event type must be acked and dropped: %d unacked", h.queue.Unacked())
	}
	if h.index.Len() != 0 {
		t.Error("unknown event type must not touch the index")
	}
}

func TestConsumer_UnsupportedFileTypeDropped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubEmbedder{})
	h.blobs.Put("docs/image.png", []byte{0x89, 0x50})
	h.deliverOne(t, eventBody("create", 1, 42, "docs/image.png"))

	if h.queue.Unacked() != 0 {
		t.Errorf("unsupported type must be acked and dropped: %d unacked", h.queue.Unacked())
	}
	f, err := h.catalog.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}
	if f.Status != catalog.StatusFailed {
		t.Errorf("status: got %q, want %q", f.Status, catalog.StatusFailed)
	}
}

func TestConsumer_TransientFailureLeavesMessageForRedelivery(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubEmbedder{err: fmt.Errorf("%w: backend down", embedder.ErrEmbedding)})
	h.blobs.Put("docs/doc.txt", []byte("Content that will fail to embed."))
	h.deliverOne(t, eventBody("create", 1, 42, "docs/doc.txt"))

	if h.queue.Unacked() != 1 {
		t.Errorf("transient failure must leave the message unacked: %d unacked", h.queue.Unacked())
	}
	if h.index.Len() != 0 {
		t.Error("failed create must not leave partial chunks")
	}
	f, err := h.catalog.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}
	if f.Status != catalog.StatusFailed {
		t.Errorf("status: got %q, want %q", f.Status, catalog.StatusFailed)
	}
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubEmbedder{})
	h.blobs.Put("docs/doc.txt", []byte("Run loop content."))
	h.queue.Enqueue([]byte(eventBody("create", 1, 7, "docs/doc.txt")))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.consumer.Run(ctx) }()

	// Wait for the loop to drain the queue, then stop it.
	deadline := time.After(2 * time.Second)
	for h.queue.Unacked() > 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("consumer did not process the enqueued event in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if h.index.Len() == 0 {
		t.Error("expected the event to be processed before shutdown")
	}
}
