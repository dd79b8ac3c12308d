// Package file stores the document as a JSON file on disk.
package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/store"
)

type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, store.Wrap("open file store", errors.New("empty path"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, store.Wrap("open file store", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(_ context.Context) (*domain.Document, error) {
	s.mu.Lock()
	raw, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewDocument(), nil
	}
	if err != nil {
		return nil, store.Wrap("read document", err)
	}

	doc, err := domain.DecodeDocument(raw)
	if err != nil {
		return nil, store.Wrap("load document", err)
	}
	return doc, nil
}

// Save writes to a temporary file in the same directory and renames it
// over the previous document, so a crash leaves either version intact.
func (s *Store) Save(_ context.Context, doc *domain.Document) error {
	raw, err := domain.EncodeDocument(doc)
	if err != nil {
		return store.Wrap("encode document", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return store.Wrap("save document", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		cleanup()
		return store.Wrap("save document", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return store.Wrap("save document", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return store.Wrap("save document", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return store.Wrap("save document", err)
	}
	return nil
}
