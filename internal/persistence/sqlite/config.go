// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sqlite opens the SQLite databases that keep run history.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Config holds the connection settings for one database file.
type Config struct {
	// BusyTimeout is how long a statement waits for a lock held by another
	// run writing to the same history file.
	BusyTimeout time.Duration
	// MaxOpenConns caps the pool. Idle connections are kept up to the
	// same number.
	MaxOpenConns int
	// ReadOnly opens an existing file without taking write locks or
	// switching its journal mode. The file is never created.
	ReadOnly bool
}

// DefaultConfig suits a history database shared by a few concurrent runs.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	}
}

// dsn builds the modernc DSN. Pragmas go in the DSN so that every pooled
// connection gets them.
func (c Config) dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.ReadOnly {
		q.Set("mode", "ro")
	} else {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
		q.Add("_pragma", "foreign_keys(ON)")
	}
	return "file:" + path + "?" + q.Encode()
}

// Open opens dbPath. A writable database is created along with its
// directory and switched to WAL mode.
func Open(dbPath string, cfg Config) (*sql.DB, error) {
	if cfg.MaxOpenConns < 1 {
		cfg.MaxOpenConns = 1
	}
	if !cfg.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("sqlite: create directory for %q: %w", dbPath, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", dbPath, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %q: %w", dbPath, err)
	}
	return db, nil
}
