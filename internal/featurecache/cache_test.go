package featurecache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "features.db")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, path
}

func TestOpen_CreatesDatabase(t *testing.T) {
	_, path := openTestCache(t)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")
	for i := 0; i < 3; i++ {
		c, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, c.Close())
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	assert.ErrorContains(t, err, "newer than supported")
}

func TestPragmas(t *testing.T) {
	c, _ := openTestCache(t)
	var mode string
	require.NoError(t, c.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestGetPut(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()
	k := Key{Path: "/a.wav", Extractor: "spectrogram/v1", Size: 10, ModTime: time.Unix(100, 5)}

	_, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, k, []float64{1.5, -2, 0}))
	vec, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{1.5, -2, 0}, vec)

	changed := k
	changed.ModTime = time.Unix(101, 0)
	_, ok, err = c.Get(ctx, changed)
	require.NoError(t, err)
	assert.False(t, ok, "modified file must miss")

	other := k
	other.Extractor = "spectrogram/v2"
	_, ok, err = c.Get(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok, "other extractor must miss")

	require.NoError(t, c.Put(ctx, changed, []float64{7}))
	vec, ok, err = c.Get(ctx, changed)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{7}, vec)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrune(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()
	for _, p := range []string{"/a.wav", "/b.wav", "/c.wav"} {
		require.NoError(t, c.Put(ctx, Key{Path: p, Extractor: "x", ModTime: time.Unix(1, 0)}, []float64{1}))
	}

	removed, err := c.Prune(ctx, map[string]bool{"/b.wav": true})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
