// Package storage persists provider metadata and recognition memory in
// SQLite. The store is deliberately failure-tolerant: a broken or
// missing database degrades every read to a cache miss and every write
// to a no-op, because recognition must keep working without it.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Store manages the recognition database.
type Store struct {
	db   *sql.DB
	path string
}

// Memory is one remembered filename-pattern match.
type Memory struct {
	TMDBID    int
	MediaType string
	Season    int
}

// Open initializes or connects to the database at path, creating the
// parent directory as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS metadata_cache (
			key        TEXT NOT NULL,
			source     TEXT NOT NULL,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (key, source)
		)`,
		`CREATE TABLE IF NOT EXISTS recognition_memory (
			pattern_key TEXT PRIMARY KEY,
			tmdb_id     INTEGER NOT NULL,
			media_type  TEXT NOT NULL,
			season      INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func fresh(updatedAt string, maxAgeDays int) bool {
	if maxAgeDays <= 0 {
		return true
	}
	ts, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return false
	}
	return time.Since(ts) <= time.Duration(maxAgeDays)*24*time.Hour
}

// GetMetadata returns cached provider metadata, or a miss when absent,
// stale or unreadable.
func (s *Store) GetMetadata(ctx context.Context, key, source string, maxAgeDays int) (json.RawMessage, bool) {
	if s == nil || s.db == nil {
		return nil, false
	}
	var data, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM metadata_cache WHERE key = ? AND source = ?`,
		key, source).Scan(&data, &updatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.WithError(err).Debug("metadata cache read failed")
		}
		return nil, false
	}
	if !fresh(updatedAt, maxAgeDays) {
		return nil, false
	}
	return json.RawMessage(data), true
}

// PutMetadata caches provider metadata under (key, source).
func (s *Store) PutMetadata(ctx context.Context, key, source string, data any) error {
	if s == nil || s.db == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO metadata_cache (key, source, data, updated_at) VALUES (?, ?, ?, ?)`,
		key, source, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write metadata cache: %w", err)
	}
	return nil
}

// GetMemory returns the remembered match for a pattern key, or a miss.
func (s *Store) GetMemory(ctx context.Context, patternKey string, maxAgeDays int) (*Memory, bool) {
	if s == nil || s.db == nil {
		return nil, false
	}
	var m Memory
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT tmdb_id, media_type, season, updated_at FROM recognition_memory WHERE pattern_key = ?`,
		patternKey).Scan(&m.TMDBID, &m.MediaType, &m.Season, &updatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.WithError(err).Debug("recognition memory read failed")
		}
		return nil, false
	}
	if !fresh(updatedAt, maxAgeDays) {
		return nil, false
	}
	return &m, true
}

// PutMemory remembers a confirmed match for a pattern key.
func (s *Store) PutMemory(ctx context.Context, patternKey string, m Memory) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO recognition_memory (pattern_key, tmdb_id, media_type, season, updated_at) VALUES (?, ?, ?, ?, ?)`,
		patternKey, m.TMDBID, m.MediaType, m.Season, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write recognition memory: %w", err)
	}
	return nil
}

// PruneExpired drops rows older than the given windows so the database
// does not grow without bound.
func (s *Store) PruneExpired(ctx context.Context, cacheDays, memoryDays int) error {
	if s == nil || s.db == nil {
		return nil
	}
	cutoff := func(days int) string {
		return time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Format(time.RFC3339Nano)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM metadata_cache WHERE updated_at < ?`, cutoff(cacheDays)); err != nil {
		return fmt.Errorf("prune metadata cache: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM recognition_memory WHERE updated_at < ?`, cutoff(memoryDays)); err != nil {
		return fmt.Errorf("prune recognition memory: %w", err)
	}
	return nil
}
