package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "animatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := map[string]any{"id": 95269, "name": "葬送的芙莉莲"}
	require.NoError(t, s.PutMetadata(ctx, "葬送的芙莉莲|2023", "tmdb", payload))

	data, ok := s.GetMetadata(ctx, "葬送的芙莉莲|2023", "tmdb", 7)
	require.True(t, ok)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "葬送的芙莉莲", got["name"])
}

func TestMetadataSourceIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutMetadata(ctx, "key", "tmdb", map[string]int{"id": 1}))

	_, ok := s.GetMetadata(ctx, "key", "bangumi", 7)
	assert.False(t, ok)
}

func TestMetadataReplaceOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutMetadata(ctx, "key", "tmdb", map[string]int{"id": 1}))
	require.NoError(t, s.PutMetadata(ctx, "key", "tmdb", map[string]int{"id": 2}))

	data, ok := s.GetMetadata(ctx, "key", "tmdb", 7)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":2}`, string(data))
}

func TestMetadataExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutMetadata(ctx, "stale", "tmdb", map[string]int{"id": 1}))

	// Backdate the row past the cache window.
	old := time.Now().UTC().Add(-10 * 24 * time.Hour).Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `UPDATE metadata_cache SET updated_at = ?`, old)
	require.NoError(t, err)

	_, ok := s.GetMetadata(ctx, "stale", "tmdb", 7)
	assert.False(t, ok)

	// A zero window disables expiry entirely.
	_, ok = s.GetMetadata(ctx, "stale", "tmdb", 0)
	assert.True(t, ok)
}

func TestMemoryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutMemory(ctx, "进击的巨人|2013", Memory{TMDBID: 1429, MediaType: "tv", Season: 1}))

	m, ok := s.GetMemory(ctx, "进击的巨人|2013", 90)
	require.True(t, ok)
	assert.Equal(t, 1429, m.TMDBID)
	assert.Equal(t, "tv", m.MediaType)
	assert.Equal(t, 1, m.Season)

	_, ok = s.GetMemory(ctx, "unknown|", 90)
	assert.False(t, ok)
}

func TestMemoryExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutMemory(ctx, "old|2000", Memory{TMDBID: 7, MediaType: "movie"}))

	old := time.Now().UTC().Add(-100 * 24 * time.Hour).Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `UPDATE recognition_memory SET updated_at = ?`, old)
	require.NoError(t, err)

	_, ok := s.GetMemory(ctx, "old|2000", 90)
	assert.False(t, ok)
}

func TestPruneExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutMetadata(ctx, "keep", "tmdb", map[string]int{"id": 1}))
	require.NoError(t, s.PutMemory(ctx, "keep|2024", Memory{TMDBID: 1, MediaType: "tv"}))
	require.NoError(t, s.PutMetadata(ctx, "drop", "tmdb", map[string]int{"id": 2}))

	old := time.Now().UTC().Add(-200 * 24 * time.Hour).Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `UPDATE metadata_cache SET updated_at = ? WHERE key = 'drop'`, old)
	require.NoError(t, err)

	require.NoError(t, s.PruneExpired(ctx, 7, 90))

	_, ok := s.GetMetadata(ctx, "keep", "tmdb", 7)
	assert.True(t, ok)
	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM metadata_cache`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	ctx := context.Background()

	assert.NoError(t, s.Close())
	assert.NoError(t, s.PutMetadata(ctx, "k", "tmdb", nil))
	assert.NoError(t, s.PutMemory(ctx, "k", Memory{}))
	assert.NoError(t, s.PruneExpired(ctx, 7, 90))

	_, ok := s.GetMetadata(ctx, "k", "tmdb", 7)
	assert.False(t, ok)
	_, ok = s.GetMemory(ctx, "k", 90)
	assert.False(t, ok)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "animatch.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutMemory(context.Background(), "k", Memory{TMDBID: 1, MediaType: "tv"}))
}
