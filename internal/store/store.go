// Package store persists fields, survey spots and analysis results in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// modernc sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS fields (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  crop_type TEXT NOT NULL DEFAULT '',
  polygon_coordinates TEXT NOT NULL,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS spots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  field_id INTEGER NOT NULL REFERENCES fields(id) ON DELETE CASCADE,
  latitude REAL NOT NULL,
  longitude REAL NOT NULL,
  image_path TEXT NOT NULL DEFAULT '',
  image_filename TEXT NOT NULL DEFAULT '',
  timestamp DATETIME NOT NULL,
  device TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS analysis_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  spot_id INTEGER NOT NULL UNIQUE REFERENCES spots(id) ON DELETE CASCADE,
  model_version TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  health_label TEXT NOT NULL DEFAULT '',
  confidence REAL NOT NULL DEFAULT 0,
  diseases_detected TEXT NOT NULL DEFAULT '[]',
  pests_detected TEXT NOT NULL DEFAULT '[]',
  nutrient_deficiencies_detected TEXT NOT NULL DEFAULT '[]',
  stress_signs TEXT NOT NULL DEFAULT '[]',
  image_quality_is_blurry INTEGER NOT NULL DEFAULT 0,
  image_quality_is_underexposed INTEGER NOT NULL DEFAULT 0,
  image_quality_is_overexposed INTEGER NOT NULL DEFAULT 0,
  processing_time_ms INTEGER NOT NULL DEFAULT 0,
  analyzed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_spots_field_id ON spots(field_id);
`)
	return err
}

// execRowsAffected runs a statement and converts zero affected rows into
// ErrNotFound.
func (s *Store) execRowsAffected(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
