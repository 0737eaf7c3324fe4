package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"auctionharvester/internal/models"
)

// JSONStore keeps the collection as a JSON array in a single file
type JSONStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONStore creates a store over path; the file is created on first save
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the document location
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the collection. A missing file is an empty collection.
func (s *JSONStore) Load(ctx context.Context) (models.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.Collection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection file: %w", err)
	}

	coll, err := decodeCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection: %w", err)
	}
	return coll, nil
}

// Save rewrites the whole document through a temp file and rename so a
// crash mid-write leaves the previous version intact
func (s *JSONStore) Save(ctx context.Context, c models.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil {
		c = models.Collection{}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.path, data)
}

// writeFileAtomic replaces path through a synced temp file in the same directory
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Close is a no-op
func (s *JSONStore) Close() error { return nil }

// ReadDescriptors reads the upstream auction list
func ReadDescriptors(path string) ([]models.AuctionDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptors: %w", err)
	}
	var out []models.AuctionDescriptor
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal descriptors: %w", err)
	}
	return out, nil
}
