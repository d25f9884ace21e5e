package syncqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS sync_queue (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	type        TEXT NOT NULL,
	url         TEXT NOT NULL,
	method      TEXT NOT NULL DEFAULT '',
	headers     TEXT NOT NULL DEFAULT '{}',
	payload     BLOB,
	enqueued_at INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS sync_leases (
	id         TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL
)`,
}

// SQLiteStore keeps items in a single SQLite table ordered by insertion.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (or creates) the queue database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := sqlDB.Exec(stmt); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("create sync tables: %w", err)
		}
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Add persists item. Returns ErrDuplicateID if the id is taken.
func (s *SQLiteStore) Add(ctx context.Context, item Item) error {
	headers, err := json.Marshal(item.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}

	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sync_queue (id, type, url, method, headers, payload, enqueued_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`,
		item.ID,
		item.Type,
		item.URL,
		item.Method,
		string(headers),
		[]byte(item.Payload),
		item.EnqueuedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert sync item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert sync item: %w", err)
	}
	if n == 0 {
		return ErrDuplicateID
	}
	return nil
}

// Get returns the item with id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Item, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, type, url, method, headers, payload, enqueued_at
FROM sync_queue
WHERE id = ?
`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("get sync item: %w", err)
	}
	return item, nil
}

// Delete removes the item with id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sync item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete sync item: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every item in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]Item, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, type, url, method, headers, payload, enqueued_at
FROM sync_queue
ORDER BY seq ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list sync items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync items: %w", err)
	}
	return items, nil
}

// Claim takes the replay lease on id. An expired lease is replaced.
func (s *SQLiteStore) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sync_leases (id, expires_at) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET expires_at = excluded.expires_at
WHERE sync_leases.expires_at <= ?
`, id, now+ttl.Milliseconds(), now)
	if err != nil {
		return false, fmt.Errorf("claim sync item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim sync item: %w", err)
	}
	return n == 1, nil
}

// Release drops the replay lease on id.
func (s *SQLiteStore) Release(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sync_leases WHERE id = ?`, id); err != nil {
		return fmt.Errorf("release sync item: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var (
		item       Item
		headers    string
		payload    []byte
		enqueuedAt int64
	)
	if err := row.Scan(&item.ID, &item.Type, &item.URL, &item.Method, &headers, &payload, &enqueuedAt); err != nil {
		return Item{}, err
	}
	if headers != "" && headers != "null" {
		if err := json.Unmarshal([]byte(headers), &item.Headers); err != nil {
			return Item{}, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	if len(payload) > 0 {
		item.Payload = json.RawMessage(payload)
	}
	item.EnqueuedAt = time.UnixMilli(enqueuedAt).UTC()
	return item, nil
}
