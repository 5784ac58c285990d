// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sqlite

import (
	"fmt"
	"strings"
	"time"
)

// MaxProblems caps the rows an integrity check reports.
const MaxProblems = 100

// VerifyIntegrity checks a history file without modifying it. quick_check
// skips index consistency; full runs integrity_check. It returns the
// reported problems, or nil for a healthy database.
func VerifyIntegrity(path string, full bool) ([]string, error) {
	db, err := Open(path, Config{BusyTimeout: 2 * time.Second, MaxOpenConns: 1, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	check := "quick_check"
	if full {
		check = "integrity_check"
	}
	rows, err := db.Query(fmt.Sprintf("PRAGMA %s(%d)", check, MaxProblems))
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s %q: %w", check, path, err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var res string
		if err := rows.Scan(&res); err != nil {
			return nil, fmt.Errorf("sqlite: %s %q: %w", check, path, err)
		}
		problems = append(problems, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(problems) == 1 && strings.EqualFold(problems[0], "ok"):
		return nil, nil
	case len(problems) == 0:
		return []string{check + " returned no rows"}, nil
	default:
		return problems, nil
	}
}
