// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldWorker    = "worker"
	FieldEvent     = "event"

	// Tree fields
	FieldTree     = "tree"
	FieldBranch   = "branch"
	FieldType     = "type"
	FieldEntry    = "entry"
	FieldEntries  = "entries"
	FieldFilter   = "filter"
	FieldPassed   = "passed"
	FieldRate     = "entries_per_sec"
	FieldProgress = "progress_pct"

	// File fields
	FieldFile      = "file"
	FieldPath      = "path"
	FieldSize      = "size"
	FieldRemaining = "files_remaining"
)
