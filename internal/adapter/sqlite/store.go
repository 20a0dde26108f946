package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/vertextoedge/swiftsaver/internal/port"
)

// migrations are applied in order. Index i brings the schema to version i+1.
// Append only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	// One row per settings field, JSON-encoded value
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	// Single-row backend session
	`CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		user_id TEXT NOT NULL,
		email TEXT,
		access_token TEXT NOT NULL,
		refresh_token TEXT,
		expires_at INTEGER,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

const upsertMeta = `INSERT INTO meta (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

// Store persists settings, session and meta values in SQLite
type Store struct {
	db *sql.DB
}

var _ port.SettingsStore = (*Store)(nil)

// Open opens (creating if needed) the database at dbPath and brings its
// schema up to date
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	dsn := dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=temp_store(MEMORY)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity
func (s *Store) Ping() error {
	return s.db.Ping()
}

// SchemaVersion returns the number of applied migrations
func (s *Store) SchemaVersion() (int, error) {
	v, err := s.GetMeta("schema_version")
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.Atoi(v)
}

func (s *Store) migrate() error {
	// meta must exist before the recorded version can be read
	if _, err := s.db.Exec(migrations[0]); err != nil {
		return fmt.Errorf("migration 1 failed: %w", err)
	}
	current, err := s.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current >= len(migrations) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := current; i < len(migrations); i++ {
		if _, err := tx.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	if _, err := tx.Exec(upsertMeta, "schema_version", strconv.Itoa(len(migrations))); err != nil {
		return err
	}
	return tx.Commit()
}

// GetMeta returns a meta value, or "" when unset
func (s *Store) GetMeta(key string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// SetMeta stores a meta value
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(upsertMeta, key, value)
	return err
}
