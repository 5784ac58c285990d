// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package history keeps the reports of past runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/emtf-tree/internal/persistence/sqlite"
	"github.com/ManuGH/emtf-tree/internal/report"
)

const schemaVersion = 1

var ErrNotFound = errors.New("run not found")

// Store records reports.
type Store struct {
	db *sql.DB
}

// Summary is one row of the run list.
type Summary struct {
	RunID    string
	Job      string
	Tree     string
	Started  time.Time
	Finished time.Time
	Files    int
	Skipped  int
	Entries  int64
	Passed   int64
	Error    string
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		tree TEXT NOT NULL,
		started_at_ms INTEGER NOT NULL,
		finished_at_ms INTEGER NOT NULL,
		files INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		entries INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		report TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at_ms);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Record stores r, replacing an earlier record of the same run.
func (s *Store) Record(ctx context.Context, r *report.Report) error {
	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	query := `
	INSERT INTO runs (run_id, job, tree, started_at_ms, finished_at_ms, files, skipped, entries, passed, error, report)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		finished_at_ms = excluded.finished_at_ms,
		files = excluded.files,
		skipped = excluded.skipped,
		entries = excluded.entries,
		passed = excluded.passed,
		error = excluded.error,
		report = excluded.report
	`
	_, err = s.db.ExecContext(ctx, query,
		r.RunID, r.Job, r.Tree, r.Started.UnixMilli(), r.Finished.UnixMilli(),
		len(r.Files), len(r.Skipped), r.Entries, r.Passed, r.Error, string(blob),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	return nil
}

// List returns the most recent runs first. A limit of zero or less lists
// every run.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT run_id, job, tree, started_at_ms, finished_at_ms, files, skipped, entries, passed, error
	FROM runs ORDER BY started_at_ms DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var started, finished int64
		if err := rows.Scan(&sum.RunID, &sum.Job, &sum.Tree, &started, &finished,
			&sum.Files, &sum.Skipped, &sum.Entries, &sum.Passed, &sum.Error); err != nil {
			return nil, err
		}
		sum.Started = time.UnixMilli(started).UTC()
		sum.Finished = time.UnixMilli(finished).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get returns the full report of a run.
func (s *Store) Get(ctx context.Context, runID string) (*report.Report, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	var r report.Report
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &r, nil
}
