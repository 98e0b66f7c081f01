package reference

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	*sqlStore
	dbPath string
}

// NewSQLiteStore creates a new SQLite reference value store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		sqlStore: &sqlStore{db: db, isDuplicate: isSQLiteUniqueViolation},
		dbPath:   dbPath,
	}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func isSQLiteUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// createSchema creates the reference table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reference_values (
		id TEXT PRIMARY KEY,
		test_category TEXT NOT NULL,
		test_name TEXT NOT NULL,
		test_unit TEXT NOT NULL DEFAULT '',
		min_value REAL NOT NULL,
		max_value REAL NOT NULL,
		gender TEXT NOT NULL DEFAULT 'both',
		age_min INTEGER NOT NULL DEFAULT 0,
		age_max INTEGER NOT NULL DEFAULT 150,
		description TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		CHECK (min_value <= max_value),
		UNIQUE(test_category, test_name, gender, age_min, age_max)
	);

	CREATE INDEX IF NOT EXISTS idx_reference_lookup ON reference_values(test_category, test_name);
	CREATE INDEX IF NOT EXISTS idx_reference_test_name ON reference_values(test_name);
	`

	_, err := db.Exec(schema)
	return err
}
