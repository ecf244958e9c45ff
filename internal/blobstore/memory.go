package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
)

// MemoryStore is an in-memory BlobStore, intended for tests. Objects
// live only for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Seed pre-populates a key, useful for setting up test fixtures.
func (m *MemoryStore) Seed(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[key] = cp
}

func (m *MemoryStore) Get(_ context.Context, key, destDir string) (string, error) {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", pipelineerr.IO("blob_not_found", fmt.Sprintf("no object at key %q", key), nil)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", pipelineerr.IO("blob_mkdir_failed", "failed to create destination directory", err)
	}
	localPath := filepath.Join(destDir, filepath.Base(key))
	if err := os.WriteFile(localPath, data, 0o600); err != nil {
		return "", pipelineerr.IO("blob_write_failed", "failed to write local copy", err)
	}
	return localPath, nil
}

func (m *MemoryStore) Put(_ context.Context, localPath, key string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return pipelineerr.IO("blob_read_failed", "failed to read local file for upload", err)
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}
