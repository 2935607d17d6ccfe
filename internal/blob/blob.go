// Package blob abstracts the object-storage collaborator the ingestion
// pipeline downloads file content from. Only the read side is modelled —
// uploads happen elsewhere, the pipeline just resolves a storage key to
// bytes. Download failures are transient: the event that triggered the
// download is redelivered and retried.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when the storage key does not resolve to an object.
var ErrNotFound = errors.New("blob: object not found")

// Store reads objects from the workspace object storage.
// Implementations must be safe for concurrent use.
type Store interface {
	// Download returns the raw bytes stored under key.
	Download(ctx context.Context, key string) ([]byte, error)
}

// FSStore is a Store rooted at a local directory, mapping storage keys to
// relative file paths. It backs local development and tests, and deployments
// where the bucket is mounted as a filesystem.
type FSStore struct {
	// root is the base directory all keys resolve under.
	root string
}

// NewFSStore constructs an FSStore rooted at dir.
func NewFSStore(dir string) (*FSStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("blob: stat root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blob: root %s is not a directory", dir)
	}
	return &FSStore{root: dir}, nil
}

// Download reads the object stored under key. Keys are slash-separated and
// must stay inside the root directory.
func (s *FSStore) Download(_ context.Context, key string) ([]byte, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("blob: invalid key %q", key)
	}

	data, err := os.ReadFile(filepath.Join(s.root, clean))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", key, err)
	}
	return data, nil
}

// MemStore is an in-memory Store keyed by storage key. Intended for tests.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

// Put stores data under key, overwriting any previous object.
func (s *MemStore) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}

// Download returns the object stored under key.
func (s *MemStore) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, nil
}
