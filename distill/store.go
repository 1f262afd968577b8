package distill

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store caches distilled knowledge by corpus fingerprint.
type Store interface {
	Get(fingerprint string) (Knowledge, bool, error)
	Put(fingerprint string, k Knowledge) error
	Close() error
}

// SQLiteStore persists the cache in a SQLite database file, shared across
// runs and across tasks in one benchmark session.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the cache database at the given path,
// creating parent directories if needed.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge cache: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize knowledge cache schema: %w", err)
	}
	return store, nil
}

// OpenSQLiteInMemory creates a throwaway in-memory cache (useful for testing).
func OpenSQLiteInMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory knowledge cache: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize knowledge cache schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS knowledge (
			fingerprint TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the cached knowledge for a fingerprint, if present.
func (s *SQLiteStore) Get(fingerprint string) (Knowledge, bool, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM knowledge WHERE fingerprint = ?`, fingerprint,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Knowledge{}, false, nil
	}
	if err != nil {
		return Knowledge{}, false, err
	}

	var k Knowledge
	if err := json.Unmarshal([]byte(payload), &k); err != nil {
		return Knowledge{}, false, fmt.Errorf("decode cached knowledge: %w", err)
	}
	return k, true, nil
}

// Put stores knowledge under a fingerprint, replacing any previous entry.
func (s *SQLiteStore) Put(fingerprint string, k Knowledge) error {
	payload, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("encode knowledge: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO knowledge (fingerprint, payload, created_at) VALUES (?, ?, ?)`,
		fingerprint, string(payload), time.Now().Unix(),
	)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FileStore keeps one JSON file per fingerprint in a directory. The file's
// existence alone signals a cache hit, so concurrent first-writers for the
// same fingerprint may redundantly recompute but never corrupt the record:
// writes go to a sibling temp file and replace the record wholesale.
type FileStore struct {
	dir string
}

// OpenFileStore opens or creates the cache directory.
func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) recordPath(fingerprint string) string {
	return filepath.Join(s.dir, "knowledge_"+fingerprint+".json")
}

// Get returns the cached knowledge for a fingerprint, if present.
func (s *FileStore) Get(fingerprint string) (Knowledge, bool, error) {
	payload, err := os.ReadFile(s.recordPath(fingerprint))
	if errors.Is(err, os.ErrNotExist) {
		return Knowledge{}, false, nil
	}
	if err != nil {
		return Knowledge{}, false, err
	}

	var k Knowledge
	if err := json.Unmarshal(payload, &k); err != nil {
		return Knowledge{}, false, fmt.Errorf("decode cached knowledge: %w", err)
	}
	return k, true, nil
}

// Put stores knowledge under a fingerprint, replacing any previous record.
func (s *FileStore) Put(fingerprint string, k Knowledge) error {
	payload, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("encode knowledge: %w", err)
	}

	tmp := s.recordPath(fingerprint) + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.recordPath(fingerprint))
}

// Close is a no-op; the store holds no open handles between calls.
func (s *FileStore) Close() error { return nil }

// MemoryStore is a process-local cache.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Knowledge
}

// NewMemoryStore creates an empty in-process cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Knowledge)}
}

func (m *MemoryStore) Get(fingerprint string) (Knowledge, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.entries[fingerprint]
	return k, ok, nil
}

func (m *MemoryStore) Put(fingerprint string, k Knowledge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[fingerprint] = k
	return nil
}

func (m *MemoryStore) Close() error { return nil }
