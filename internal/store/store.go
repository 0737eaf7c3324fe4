// Package store persists the auction collection document.
//
// Every backend rewrites the whole collection on Save. Saves are serialized,
// and a failed save leaves the previously written version readable.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"auctionharvester/internal/models"
)

// Store loads and saves the auction collection
type Store interface {
	Load(ctx context.Context) (models.Collection, error)
	Save(ctx context.Context, c models.Collection) error
	Close() error
}

// Backend names accepted by Open
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the store for the named backend
func Open(backend, jsonPath, sqlitePath string) (Store, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONStore(jsonPath), nil
	case BackendSQLite:
		return NewSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// decodeCollection parses a collection document. Null entries are dropped
// and a missing vehicle list becomes an empty one.
func decodeCollection(data []byte) (models.Collection, error) {
	var raw models.Collection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	coll := make(models.Collection, 0, len(raw))
	for _, rec := range raw {
		if rec == nil {
			continue
		}
		if rec.Vehicles == nil {
			rec.Vehicles = []models.VehicleRecord{}
		}
		coll = append(coll, rec)
	}
	return coll, nil
}
