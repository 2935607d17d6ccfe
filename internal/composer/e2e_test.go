package composer

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/notely-ai/contextd/internal/blob"
	"github.com/notely-ai/contextd/internal/catalog"
	"github.com/notely-ai/contextd/internal/extractor"
	"github.com/notely-ai/contextd/internal/index"
	"github.com/notely-ai/contextd/internal/ingest"
)

// TestIngestThenCompose exercises the full write-then-read path: a file is
// ingested through the pipeline, then a context query for its workspace and
// conversation must surface its content and file name.
func TestIngestThenCompose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	blobs := blob.NewMemStore()
	blobs.Put("uploads/doc.txt", []byte("Paragraph one. Paragraph two."))
	idx := index.NewMemoryIndex()
	cat := openTestCatalog(t)

	pipeline, err := ingest.NewPipeline(blobs, extractor.New(), stubEmbedder{}, idx, nil, log)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	created, err := pipeline.Create(ctx, ingest.FileRef{
		WorkspaceID: 1,
		FileID:      7,
		StorageKey:  "uploads/doc.txt",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created == 0 {
		t.Fatal("expected indexed chunks")
	}

	if err := cat.Upsert(ctx, catalog.File{
		ID: 7, WorkspaceID: 1, ConversationID: 3,
		Name: "doc.txt", StorageKey: "uploads/doc.txt",
		Status: catalog.StatusCompleted,
	}); err != nil {
		t.Fatalf("catalog upsert: %v", err)
	}

	c := newTestComposer(t, idx, cat, nil)

	for name, fetch := range map[string]func() (string, error){
		"workspace scope":    func() (string, error) { return c.ForWorkspace(ctx, 1, "Paragraph two") },
		"conversation scope": func() (string, error) { return c.ForConversation(ctx, 1, 3, "Paragraph two") },
	} {
		out, err := fetch()
		if err != nil {
			t.Fatalf("%s failed: %v", name, err)
		}
		if out == "" {
			t.Fatalf("%s: expected non-empty context", name)
		}
		if !strings.Contains(out, "Paragraph two") {
			t.Errorf("%s: content missing:\n%s", name, out)
		}
		if !strings.Contains(out, "doc.txt") {
			t.Errorf("%s: file name missing:\n%s", name, out)
		}
	}
}
