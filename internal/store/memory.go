package store

import (
	"context"
	"sync"

	"auctionharvester/internal/models"
)

// MemoryStore holds the collection in memory and keeps every saved version
type MemoryStore struct {
	mu        sync.Mutex
	snapshots []models.Collection
}

// NewMemoryStore creates a store, optionally seeded with a collection
func NewMemoryStore(initial models.Collection) *MemoryStore {
	m := &MemoryStore{}
	if initial != nil {
		m.snapshots = append(m.snapshots, initial.Clone())
	}
	return m
}

func (m *MemoryStore) Load(ctx context.Context) (models.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return models.Collection{}, nil
	}
	return m.snapshots[len(m.snapshots)-1].Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, c models.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, c.Clone())
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Snapshots returns copies of every saved version, oldest first
func (m *MemoryStore) Snapshots() []models.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Collection, len(m.snapshots))
	for i, s := range m.snapshots {
		out[i] = s.Clone()
	}
	return out
}
