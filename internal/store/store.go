// Package store persists gallery items in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/audiolibrelab/voicecards/internal/media"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the item store keyed by item id.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at dbPath and creates the schema if needed.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		image_ref TEXT NOT NULL DEFAULT '',
		audio_ref TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// NewID returns a fresh item id.
func NewID() string {
	return uuid.New().String()
}

// Append stores a new item. A missing id or timestamp is filled in.
func (s *Store) Append(item media.MediaItem) (media.MediaItem, error) {
	if item.ID == "" {
		item.ID = NewID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO items (id, label, image_ref, audio_ref, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.Label, item.ImageRef, item.AudioRef, item.CreatedAt,
	)
	if err != nil {
		return media.MediaItem{}, fmt.Errorf("insert item: %w", err)
	}

	return item, nil
}

// List returns all items in insertion order.
func (s *Store) List() ([]media.MediaItem, error) {
	rows, err := s.db.Query(
		`SELECT id, label, image_ref, audio_ref, created_at
		 FROM items ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]media.MediaItem, 0)
	for rows.Next() {
		var item media.MediaItem
		if err := rows.Scan(&item.ID, &item.Label, &item.ImageRef, &item.AudioRef, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return items, nil
}

// Get retrieves an item by id. It returns false when no such item exists.
func (s *Store) Get(id string) (media.MediaItem, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, label, image_ref, audio_ref, created_at
		 FROM items WHERE id = ?`,
		id,
	)

	var item media.MediaItem
	err := row.Scan(&item.ID, &item.Label, &item.ImageRef, &item.AudioRef, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return media.MediaItem{}, false, nil
	}
	if err != nil {
		return media.MediaItem{}, false, fmt.Errorf("scan item: %w", err)
	}

	return item, true, nil
}

// Clear removes every item and returns what was removed so the caller can release assets.
func (s *Store) Clear() ([]media.MediaItem, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`SELECT id, label, image_ref, audio_ref, created_at FROM items ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	var removed []media.MediaItem
	for rows.Next() {
		var item media.MediaItem
		if err := rows.Scan(&item.ID, &item.Label, &item.ImageRef, &item.AudioRef, &item.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan item: %w", err)
		}
		removed = append(removed, item)
	}
	_ = rows.Close()

	if _, err := tx.Exec(`DELETE FROM items`); err != nil {
		return nil, fmt.Errorf("delete items: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit clear: %w", err)
	}

	return removed, nil
}
