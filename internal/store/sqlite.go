package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"auctionharvester/internal/models"
)

//go:embed schema.sql
var schema string

// SQLiteStore keeps every saved collection as a snapshot row. Load returns
// the newest snapshot, so older versions stay available for inspection.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Snapshot describes one saved version of the collection
type Snapshot struct {
	ID        int64
	Auctions  int
	CreatedAt time.Time
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_cache_size=10000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the latest snapshot, or an empty collection before the first save
func (s *SQLiteStore) Load(ctx context.Context) (models.Collection, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM collection_snapshots ORDER BY id DESC LIMIT 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Collection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	coll, err := decodeCollection([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return coll, nil
}

// Save appends a new snapshot
func (s *SQLiteStore) Save(ctx context.Context, c models.Collection) error {
	if c == nil {
		c = models.Collection{}
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_snapshots (auctions, document, created_at) VALUES (?, ?, ?)`,
		len(c), string(doc), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// Snapshots lists saved versions, newest first
func (s *SQLiteStore) Snapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	query := `SELECT id, auctions, created_at FROM collection_snapshots ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Auctions, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep snapshots
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM collection_snapshots
		WHERE id NOT IN (SELECT id FROM collection_snapshots ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// ImportJSON seeds the database from an existing JSON collection document.
// It runs once; later calls are no-ops.
func (s *SQLiteStore) ImportJSON(ctx context.Context, jsonPath string) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM store_metadata WHERE key = 'json_import'`).Scan(&status)
	if err == nil && status == "completed" {
		return false, nil
	}

	coll, err := NewJSONStore(jsonPath).Load(ctx)
	if err != nil {
		return false, err
	}
	doc, err := json.Marshal(coll)
	if err != nil {
		return false, fmt.Errorf("failed to marshal collection: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if len(coll) > 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collection_snapshots (auctions, document, created_at) VALUES (?, ?, ?)`,
			len(coll), string(doc), time.Now().UTC()); err != nil {
			return false, fmt.Errorf("failed to insert imported snapshot: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE store_metadata SET value = 'completed', updated_at = CURRENT_TIMESTAMP WHERE key = 'json_import'`); err != nil {
		return false, fmt.Errorf("failed to update import status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(coll) > 0, nil
}
