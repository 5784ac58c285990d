// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by all spans.
const (
	// Run attributes
	RunIDKey   = "run.id"
	RunJobKey  = "run.job"
	WorkerKey  = "run.worker"
	WorkersKey = "run.workers"

	// File and tree attributes
	FilePathKey    = "file.path"
	FileSizeKey    = "file.size_bytes"
	TreeNameKey    = "tree.name"
	TreeEntriesKey = "tree.entries"

	// Iteration attributes
	EntriesReadKey   = "entries.read"
	EntriesPassedKey = "entries.passed"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// FileAttributes describes the file a span reads.
func FileAttributes(path, tree string, entries int64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if path != "" {
		attrs = append(attrs, attribute.String(FilePathKey, path))
	}
	if tree != "" {
		attrs = append(attrs, attribute.String(TreeNameKey, tree))
	}
	if entries >= 0 {
		attrs = append(attrs, attribute.Int64(TreeEntriesKey, entries))
	}
	return attrs
}

// IterationAttributes records how many entries were read and passed.
func IterationAttributes(read, passed int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(EntriesReadKey, read),
		attribute.Int64(EntriesPassedKey, passed),
	}
}

// RunAttributes describes a scan run.
func RunAttributes(runID, job string, workers int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RunIDKey, runID),
		attribute.String(RunJobKey, job),
		attribute.Int(WorkersKey, workers),
	}
}

// ErrorAttributes marks a span as failed with a coarse error type.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
