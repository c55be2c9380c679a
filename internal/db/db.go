package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// dsnParams: wait up to 5s on a busy database, enforce foreign keys, and
// start every transaction with BEGIN IMMEDIATE so writers serialize up front.
const dsnParams = "_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"

// Open opens (creating if needed) the database at path, applies pragmas and
// brings the schema up to date.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers inside the process; WAL lets
	// other processes keep reading.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// DSN builds the go-sqlite3 connection string for path.
func DSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?" + dsnParams
	}
	return "file:" + path + "?" + dsnParams
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}
