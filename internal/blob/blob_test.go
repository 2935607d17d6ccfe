package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFSStore_Download(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "docs", "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	data, err := s.Download(context.Background(), "docs/a.txt")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q, want %q", data, "hello")
	}
}

func TestFSStore_MissingKey(t *testing.T) {
	t.Parallel()

	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if _, err := s.Download(context.Background(), "nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFSStore_RejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	for _, key := range []string{"../etc/passwd", "/etc/passwd", "docs/../../secret"} {
		if _, err := s.Download(context.Background(), key); err == nil {
			t.Errorf("key %q should be rejected", key)
		}
	}
}

func TestFSStore_RequiresDirectory(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFSStore(file); err == nil {
		t.Error("expected error for non-directory root")
	}
	if _, err := NewFSStore(filepath.Join(file, "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestMemStore_PutAndDownload(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	s.Put("k", []byte("v"))

	data, err := s.Download(context.Background(), "k")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(data) != "v" {
		t.Errorf("got %q, want %q", data, "v")
	}

	if _, err := s.Download(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
