package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
)

// MemoryDSN opens a private in-memory database
const MemoryDSN = ":memory:"

// OpenSQLite opens a SQLite database file, or an in-memory database for
// MemoryDSN. Foreign keys are enforced and write transactions take the
// database lock up front.
func OpenSQLite(path string) (*SQLStore, error) {
	var dsn string
	if path == MemoryDSN {
		dsn = "file::memory:?_foreign_keys=on&_txlock=immediate"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(db, DialectSQLite), nil
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
