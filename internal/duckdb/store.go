// Package duckdb persists synchronized runs and caches parsed genetic maps.
// Genetic maps are cached as gob files (fast, pure Go).
// Accepted sites are catalogued in DuckDB (queryable, append-only).
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding the site catalogue.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create sites directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS sync_runs (
		run_id VARCHAR PRIMARY KEY,
		created_at TIMESTAMP,
		ref_path VARCHAR,
		ref_size BIGINT,
		ref_modtime TIMESTAMP,
		target_path VARCHAR,
		target_size BIGINT,
		target_modtime TIMESTAMP,
		map_path VARCHAR,
		chrom BIGINT,
		m BIGINT,
		mseg64 BIGINT,
		nref BIGINT,
		ntarget BIGINT,
		cm_max DOUBLE,
		target_only BIGINT,
		ref_only BIGINT,
		multi_allelic BIGINT,
		monomorphic BIGINT,
		ref_alt_error BIGINT,
		ref_alt_swaps BIGINT,
		missing_target_calls BIGINT
	)`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS sync_sites (
		run_id VARCHAR,
		idx BIGINT,
		chrom BIGINT,
		pos BIGINT,
		cm DOUBLE,
		segment BIGINT,
		swapped BOOLEAN,
		PRIMARY KEY (run_id, idx)
	)`)
	return err
}
