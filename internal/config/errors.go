// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "errors"

var (
	// ErrUnknownConfigField marks a job file with a key no Job field maps
	// to, usually a misspelt cut or collection setting.
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrMultipleDocuments marks a job file holding more than one YAML
	// document. Run one job per file.
	ErrMultipleDocuments = errors.New("config file contains multiple documents or trailing content")
	// ErrUnsupportedFormat marks a job file whose extension is not .yaml
	// or .yml.
	ErrUnsupportedFormat = errors.New("unsupported config format")
)

// FileError ties a parse failure to the job file it came from.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return "job file " + e.Path + ": " + e.Err.Error() }
func (e *FileError) Unwrap() error { return e.Err }
