package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	ttl_ms     INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries(expires_at);
`

// SQLite is a persistent process-tier Backend. Payloads are stored
// zstd-compressed.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
	enc *zstd.Encoder
	dec *zstd.Decoder
}

type SQLiteOption func(*SQLite)

func WithSQLiteClock(now func() time.Time) SQLiteOption {
	return func(s *SQLite) {
		if now != nil {
			s.now = now
		}
	}
}

// OpenSQLite opens or creates the cache database at path, creating the
// parent directory if needed.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite cache: path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite cache: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite cache: open: %w", err)
	}
	// One writer keeps SQLITE_BUSY out of the hot path.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite cache: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite cache: migrate: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite cache: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, fmt.Errorf("sqlite cache: zstd decoder: %w", err)
	}

	s := &SQLite{db: db, now: time.Now, enc: enc, dec: dec}
	for _, apply := range opts {
		apply(s)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	s.dec.Close()
	_ = s.enc.Close()
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		blob      []byte
		createdMs int64
		ttlMs     int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at, ttl_ms FROM cache_entries WHERE key = ?`, key,
	).Scan(&blob, &createdMs, &ttlMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: lookup %s: %v", ErrUnavailable, key, err)
	}

	e := Entry{
		Key:       key,
		CreatedAt: time.UnixMilli(createdMs),
		TTL:       time.Duration(ttlMs) * time.Millisecond,
	}
	if e.Expired(s.now()) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ? AND created_at = ?`, key, createdMs); err != nil {
			return Entry{}, false, fmt.Errorf("%w: evict %s: %v", ErrUnavailable, key, err)
		}
		return Entry{}, false, nil
	}

	payload, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return Entry{}, false, fmt.Errorf("sqlite cache: decode %s: %w", key, err)
	}
	e.Payload = payload
	return e, true, nil
}

func (s *SQLite) Put(ctx context.Context, e Entry) error {
	blob := s.enc.EncodeAll(e.Payload, nil)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries (key, payload, created_at, ttl_ms, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.Key, blob, e.CreatedAt.UnixMilli(), e.TTL.Milliseconds(), e.ExpiresAt().UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: store %s: %v", ErrUnavailable, e.Key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLite) DeletePrefix(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeLike(prefix) + "%"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT key FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrUnavailable, prefix, err)
	}
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrUnavailable, prefix, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, pattern); err != nil {
		return nil, fmt.Errorf("%w: delete %s: %v", ErrUnavailable, prefix, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return keys, nil
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at < ? THEN 1 ELSE 0 END), 0)
		FROM cache_entries
	`, s.now().UnixMilli()).Scan(&st.Entries, &st.Expired)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: stats: %v", ErrUnavailable, err)
	}
	return st, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
