// Package kvcache is the generic TTL cache behind the cache_* tools.
// Items live in a SQLite database so writes are atomic and concurrent
// access is serialized by the engine instead of racing on loose files.
//
// Keys are MD5-hashed; values carry a codec tag (json, text, raw, gob)
// chosen from the Go type at Set time. Expiry is checked lazily on
// read, and inserts evict least-recently-accessed items until the
// store fits its size budget.
package kvcache

import (
	"bytes"
	"crypto/md5"
	"database/sql"
	"embed"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultMaxSizeMB bounds the cache when the caller does not.
const DefaultMaxSizeMB = 100

var ErrNotFound = errors.New("cache item not found")

// Store wraps a SQLite database holding cache items.
type Store struct {
	db       *sql.DB
	maxBytes int64
	now      func() time.Time
}

// Open opens (or creates) the cache database in dataDir and runs
// pending migrations. Pass ":memory:" as dataDir for an in-memory
// database (used by tests). maxSizeMB <= 0 selects DefaultMaxSizeMB.
func Open(dataDir string, maxSizeMB int) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "cache.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}

	s := &Store{
		db:       db,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		now:      time.Now,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Item is one cached entry as stored.
type Item struct {
	Key       string
	Codec     string
	Raw       []byte
	CreatedAt time.Time
	ExpiresAt time.Time // zero means no expiry
}

// Value decodes the item per its codec: json items decode into
// generic Go values, text into string, raw and gob into the stored
// bytes (gob needs GetGob with a concrete target).
func (it *Item) Value() (any, error) {
	switch it.Codec {
	case "json":
		var v any
		if err := json.Unmarshal(it.Raw, &v); err != nil {
			return nil, fmt.Errorf("decode json item: %w", err)
		}
		return v, nil
	case "text":
		return string(it.Raw), nil
	default:
		return it.Raw, nil
	}
}

// Set stores value under key. []byte stores raw, string as text,
// anything else as JSON. ttl <= 0 means no expiry.
func (s *Store) Set(key string, value any, ttl time.Duration) error {
	codec, data, err := encode(value)
	if err != nil {
		return err
	}
	return s.put(key, codec, data, ttl)
}

// SetGob stores a Go value gob-encoded, for callers that will read it
// back with GetGob and a concrete type.
func (s *Store) SetGob(key string, value any, ttl time.Duration) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return s.put(key, "gob", buf.Bytes(), ttl)
}

// Get returns the item for key. Expired items are deleted on access
// and reported as missing.
func (s *Store) Get(key string) (*Item, error) {
	h := hashKey(key)
	var it Item
	var created, accessed int64
	var expires sql.NullInt64
	err := s.db.QueryRow(`
		SELECT key, codec, value, created_at, expires_at, accessed_at
		FROM cache_items WHERE key_hash = ?`, h,
	).Scan(&it.Key, &it.Codec, &it.Raw, &created, &expires, &accessed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache item: %w", err)
	}

	now := s.now()
	if expires.Valid && expires.Int64 <= now.UnixNano() {
		if _, err := s.db.Exec("DELETE FROM cache_items WHERE key_hash = ?", h); err != nil {
			return nil, fmt.Errorf("deleting expired item: %w", err)
		}
		return nil, fmt.Errorf("key %q expired: %w", key, ErrNotFound)
	}

	if _, err := s.db.Exec("UPDATE cache_items SET accessed_at = ? WHERE key_hash = ?", now.UnixNano(), h); err != nil {
		return nil, fmt.Errorf("touching cache item: %w", err)
	}

	it.CreatedAt = time.Unix(0, created)
	if expires.Valid {
		it.ExpiresAt = time.Unix(0, expires.Int64)
	}
	return &it, nil
}

// GetGob decodes a gob item into out, which must be a pointer to the
// type passed to SetGob.
func (s *Store) GetGob(key string, out any) error {
	it, err := s.Get(key)
	if err != nil {
		return err
	}
	if it.Codec != "gob" {
		return fmt.Errorf("key %q holds %s data, not gob", key, it.Codec)
	}
	if err := gob.NewDecoder(bytes.NewReader(it.Raw)).Decode(out); err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}
	return nil
}

// Delete removes the item for key.
func (s *Store) Delete(key string) error {
	res, err := s.db.Exec("DELETE FROM cache_items WHERE key_hash = ?", hashKey(key))
	if err != nil {
		return fmt.Errorf("deleting cache item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	return nil
}

// Clear removes every item.
func (s *Store) Clear() error {
	_, err := s.db.Exec("DELETE FROM cache_items")
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// Stats describes current cache occupancy.
type Stats struct {
	Items      int   `json:"items"`
	TotalBytes int64 `json:"total_bytes"`
	MaxBytes   int64 `json:"max_bytes"`
}

// Stats reports item count and byte totals.
func (s *Store) Stats() (Stats, error) {
	st := Stats{MaxBytes: s.maxBytes}
	err := s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM cache_items").Scan(&st.Items, &st.TotalBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("reading cache stats: %w", err)
	}
	return st, nil
}

func (s *Store) put(key, codec string, data []byte, ttl time.Duration) error {
	now := s.now()
	var expires any
	if ttl > 0 {
		expires = now.Add(ttl).UnixNano()
	}
	h := hashKey(key)
	_, err := s.db.Exec(`
		INSERT INTO cache_items (key_hash, key, codec, value, size_bytes, created_at, expires_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key_hash) DO UPDATE SET
			codec = excluded.codec,
			value = excluded.value,
			size_bytes = excluded.size_bytes,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			accessed_at = excluded.accessed_at`,
		h, key, codec, data, len(data), now.UnixNano(), expires, now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("writing cache item: %w", err)
	}
	return s.enforceBudget(h)
}

// enforceBudget deletes least-recently-accessed items until the store
// fits maxBytes. The item just written is never evicted, so a single
// oversized value can still be cached.
func (s *Store) enforceBudget(keep string) error {
	for {
		var total int64
		if err := s.db.QueryRow("SELECT COALESCE(SUM(size_bytes), 0) FROM cache_items").Scan(&total); err != nil {
			return fmt.Errorf("reading cache size: %w", err)
		}
		if total <= s.maxBytes {
			return nil
		}

		var victim string
		err := s.db.QueryRow(`
			SELECT key_hash FROM cache_items WHERE key_hash != ?
			ORDER BY accessed_at ASC, key_hash ASC LIMIT 1`, keep,
		).Scan(&victim)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("selecting eviction victim: %w", err)
		}
		if _, err := s.db.Exec("DELETE FROM cache_items WHERE key_hash = ?", victim); err != nil {
			return fmt.Errorf("evicting cache item: %w", err)
		}
	}
}

func encode(value any) (string, []byte, error) {
	switch v := value.(type) {
	case []byte:
		return "raw", v, nil
	case json.RawMessage:
		return "json", v, nil
	case string:
		return "text", []byte(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", nil, fmt.Errorf("encode value: %w", err)
		}
		return "json", data, nil
	}
}

func hashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
