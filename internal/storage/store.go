package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for an unknown locator.
var ErrNotFound = errors.New("storage: content not found")

// ContentStore holds raw contract bytes. The returned locator is opaque to the
// caller; content hashing happens before bytes reach the store.
type ContentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
}

// FileStore keeps content under a single directory, one file per locator.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	locator := uuid.New().String()
	if err := os.WriteFile(filepath.Join(s.dir, locator), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write content: %w", err)
	}
	return locator, nil
}

func (s *FileStore) Get(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Locators are generated UUIDs; reject anything that tries to escape the
	// storage directory.
	if filepath.Base(locator) != locator {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.dir, locator))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// MemoryStore is an in-process ContentStore for tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	locator := uuid.New().String()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.data[locator] = buf
	return locator, nil
}

func (s *MemoryStore) Get(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[locator]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}
