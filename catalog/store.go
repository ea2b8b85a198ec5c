package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	ErrCatalogNotFound = errors.New("catalog file not found")
	ErrInvalidCatalog  = errors.New("invalid catalog document")
)

// Store reads the shared item catalog from a JSON file on disk. The
// file is externally owned (the admin tooling writes it); the store
// only guarantees that readers observe a consistent snapshot, never a
// torn or half-written document.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a catalog store for the given file path. The parent
// directory must exist; the file itself may appear later.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog directory does not exist: %s", dir)
	}

	return &Store{path: path}, nil
}

// Read returns the current catalog document. A document that does not
// parse as JSON is rejected so a partially written file is never
// handed to the broadcaster.
func (s *Store) Read(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCatalogNotFound
		}
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	if !json.Valid(data) {
		return nil, ErrInvalidCatalog
	}

	return json.RawMessage(data), nil
}

// Path returns the catalog file path.
func (s *Store) Path() string {
	return s.path
}

// Stat returns the catalog file's current size and modification time.
// The watcher uses this to detect changes without reading the file.
func (s *Store) Stat() (size int64, modTime int64, err error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, 0, err
	}
	return info.Size(), info.ModTime().UnixNano(), nil
}
