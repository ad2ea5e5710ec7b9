package transport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Match is the closest indexed upload to a probe hash.
type Match struct {
	UploadID string
	Hash     uint64
	Distance int
}

// HashIndex stores the perceptual hashes of accepted uploads.
type HashIndex interface {
	// Nearest returns the closest entry to hash; ok is false when the index
	// is empty.
	Nearest(ctx context.Context, hash uint64) (m Match, ok bool, err error)
	Add(ctx context.Context, uploadID string, hash uint64) error
	Remove(ctx context.Context, uploadID string) error
	Close() error
}

// ── Memory ────────────────────────────────────────────────────────────────────

// MemoryIndex is a process-local HashIndex.
type MemoryIndex struct {
	mu     sync.RWMutex
	hashes map[string]uint64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{hashes: make(map[string]uint64)}
}

func (m *MemoryIndex) Nearest(ctx context.Context, hash uint64) (Match, bool, error) {
	if err := ctx.Err(); err != nil {
		return Match{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	best, found := Match{Distance: HashBits + 1}, false
	for id, h := range m.hashes {
		if d := Distance(hash, h); d < best.Distance || (d == best.Distance && id < best.UploadID) {
			best, found = Match{UploadID: id, Hash: h, Distance: d}, true
		}
	}
	return best, found, nil
}

func (m *MemoryIndex) Add(_ context.Context, uploadID string, hash uint64) error {
	m.mu.Lock()
	m.hashes[uploadID] = hash
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Remove(_ context.Context, uploadID string) error {
	m.mu.Lock()
	delete(m.hashes, uploadID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Close() error { return nil }

// ── SQLite ────────────────────────────────────────────────────────────────────

const hashSchema = `CREATE TABLE IF NOT EXISTS photo_hashes (
    upload_id  TEXT PRIMARY KEY,
    hash       INTEGER NOT NULL,
    created_at TEXT NOT NULL
)`

// SQLiteIndex persists hashes so duplicate screening survives restarts.
// Hashes are stored as the signed reinterpretation of the uint64.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// OpenSQLiteIndex opens or creates the index database at path.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure index dir: %w", err)
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
	if _, err := db.Exec(hashSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteIndex{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteIndex) Path() string { return s.path }

func (s *SQLiteIndex) Nearest(ctx context.Context, hash uint64) (Match, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT upload_id, hash FROM photo_hashes ORDER BY upload_id`)
	if err != nil {
		return Match{}, false, fmt.Errorf("query hashes: %w", err)
	}
	defer rows.Close()

	best, found := Match{Distance: HashBits + 1}, false
	for rows.Next() {
		var (
			id  string
			raw int64
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return Match{}, false, fmt.Errorf("scan hash: %w", err)
		}
		h := uint64(raw)
		if d := Distance(hash, h); d < best.Distance {
			best, found = Match{UploadID: id, Hash: h, Distance: d}, true
		}
	}
	if err := rows.Err(); err != nil {
		return Match{}, false, fmt.Errorf("iterate hashes: %w", err)
	}
	return best, found, nil
}

func (s *SQLiteIndex) Add(ctx context.Context, uploadID string, hash uint64) error {
	if uploadID == "" {
		return errors.New("upload id is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO photo_hashes (upload_id, hash, created_at) VALUES (?, ?, ?)
         ON CONFLICT(upload_id) DO UPDATE SET hash = excluded.hash`,
		uploadID, int64(hash), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert hash: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Remove(ctx context.Context, uploadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM photo_hashes WHERE upload_id = ?`, uploadID); err != nil {
		return fmt.Errorf("delete hash: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	_ HashIndex = (*MemoryIndex)(nil)
	_ HashIndex = (*SQLiteIndex)(nil)
)
