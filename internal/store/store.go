package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/strictfetch/internal/schema"
)

//go:embed schema.sql
var catalogSQL string

// Schema version tracking:
// 0 - Empty database
// 1 - Table catalog
const currentSchemaVersion = 1

// Store is a SQLite database holding the tables of one model registry.
type Store struct {
	db   *sql.DB
	path string
	reg  *schema.Registry
}

// memoryPath opens a private in-memory database.
const memoryPath = ":memory:"

// pragma is one connection setting and the value SQLite reports back.
type pragma struct {
	name, value, reported string
}

// pragmasFor returns the settings for a database at path. An in-memory
// database has no journal file, so WAL is only requested on disk.
func pragmasFor(path string) []pragma {
	ps := []pragma{
		{"synchronous", "NORMAL", "1"},
		{"busy_timeout", "5000", "5000"},
		{"foreign_keys", "ON", "1"},
	}
	if path != memoryPath {
		ps = append([]pragma{{"journal_mode", "WAL", "wal"}}, ps...)
	}
	return ps
}

// Open creates or opens a SQLite database at path. ":memory:" opens a
// private in-memory database that lives as long as the Store.
//
// File databases use WAL journaling. Every database gets NORMAL
// synchronous mode, a 5-second busy timeout and foreign key enforcement.
// Opening an existing file is safe; the catalog is created only once.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and a second connection
	// to ":memory:" would see a different, empty database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmasFor(path) {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", p.name, err)
		}
	}

	if err := applyCatalog(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Registry returns the registry applied by Migrate, or nil.
func (s *Store) Registry() *schema.Registry {
	return s.reg
}

// Query runs a read statement for the engine. Callers close the rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// applyCatalog creates the table catalog and stamps user_version. A
// database written by a newer version is rejected.
func applyCatalog(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(catalogSQL); err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// checkPragmas compares every configured pragma with what SQLite reports.
func (s *Store) checkPragmas() error {
	for _, p := range pragmasFor(s.path) {
		var got string
		if err := s.db.QueryRow("PRAGMA " + p.name).Scan(&got); err != nil {
			return fmt.Errorf("failed to query %s: %w", p.name, err)
		}
		if got != p.reported {
			return fmt.Errorf("%s = %q, expected %q", p.name, got, p.reported)
		}
	}
	return nil
}
