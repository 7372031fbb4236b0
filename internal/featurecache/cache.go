package featurecache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - features table keyed by (path, extractor)
const currentSchemaVersion = 1

// Key identifies one cached vector.
type Key struct {
	Path      string
	Extractor string
	Size      int64
	ModTime   time.Time
}

// KeyFor stats path and builds its key.
func KeyFor(path, extractor string) (Key, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Key{}, err
	}
	return Key{Path: path, Extractor: extractor, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Cache is a SQLite-backed feature vector store.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the cache database at path, creating its directory.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to feature cache: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the vector stored for k. A row whose size or mtime differs
// from k is reported as a miss.
func (c *Cache) Get(ctx context.Context, k Key) ([]float64, bool, error) {
	var (
		size  int64
		mtime int64
		dim   int
		blob  []byte
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT size, mtime_ns, dim, vector
		FROM features
		WHERE path = ? AND extractor = ?
	`, k.Path, k.Extractor).Scan(&size, &mtime, &dim, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read feature: %w", err)
	}
	if size != k.Size || mtime != k.ModTime.UnixNano() {
		return nil, false, nil
	}
	vec, err := decodeVector(blob, dim)
	if err != nil {
		return nil, false, fmt.Errorf("read feature %s: %w", k.Path, err)
	}
	return vec, true, nil
}

// Put stores vec for k, replacing any older entry for the same path and
// extractor.
func (c *Cache) Put(ctx context.Context, k Key, vec []float64) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO features (path, extractor, size, mtime_ns, dim, vector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, extractor) DO UPDATE SET
			size = excluded.size,
			mtime_ns = excluded.mtime_ns,
			dim = excluded.dim,
			vector = excluded.vector,
			updated_at = excluded.updated_at
	`,
		k.Path,
		k.Extractor,
		k.Size,
		k.ModTime.UnixNano(),
		len(vec),
		encodeVector(vec),
		c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write feature: %w", err)
	}
	return nil
}

// Len returns the number of stored vectors.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM features`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count features: %w", err)
	}
	return n, nil
}

// Prune deletes entries whose path is not in keep and returns how many were
// removed.
func (c *Cache) Prune(ctx context.Context, keep map[string]bool) (int, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT path FROM features ORDER BY path`)
	if err != nil {
		return 0, fmt.Errorf("query features: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan feature path: %w", err)
		}
		if !keep[p] {
			stale = append(stale, p)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate features: %w", err)
	}
	rows.Close()

	removed := 0
	for _, p := range stale {
		res, err := c.db.ExecContext(ctx, `DELETE FROM features WHERE path = ?`, p)
		if err != nil {
			return removed, fmt.Errorf("prune %s: %w", p, err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	return removed, nil
}

func encodeVector(vec []float64) []byte {
	out := make([]byte, 0, len(vec)*8)
	for _, v := range vec {
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
	}
	return out
}

func decodeVector(blob []byte, dim int) ([]float64, error) {
	if len(blob) != dim*8 {
		return nil, fmt.Errorf("vector has %d bytes, want %d", len(blob), dim*8)
	}
	vec := make([]float64, dim)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vec, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and checks the version.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations brings user_version up to currentSchemaVersion. A cache
// written by a newer schema is refused rather than downgraded.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("cache schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
