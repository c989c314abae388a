// Package storage persists rule records and user accounts in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// MemoryPath opens an ephemeral database that lives as long as the process.
const MemoryPath = ":memory:"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique column would be violated.
	ErrDuplicate = errors.New("already exists")
)

// DB owns the SQLite connection shared by the rule and user stores.
type DB struct {
	db       *sql.DB
	path     string
	inMemory bool
}

// Open opens (or creates) the database at path and runs migrations.
// An empty path or MemoryPath opens an in-memory database.
func Open(path string) (*DB, error) {
	inMemory := path == "" || path == MemoryPath

	dsn := "file::memory:?_pragma=foreign_keys(ON)"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = "file:" + path + "?" + pragmas
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if inMemory {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return &DB{db: db, path: path, inMemory: inMemory}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// InMemory reports whether the database is ephemeral.
func (d *DB) InMemory() bool {
	return d.inMemory
}

// Ping checks the connection is still usable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Rules returns the rule repository backed by this database.
func (d *DB) Rules() *RuleStore {
	return &RuleStore{db: d.db}
}

// Users returns the user repository backed by this database.
func (d *DB) Users() *UserStore {
	return &UserStore{db: d.db}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
