// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package rootio opens ROOT files and exposes their trees as tree.Source.
package rootio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrOpen            = errors.New("could not open file")
	ErrDoesNotExist    = errors.New("object does not exist")
	ErrNotATree        = errors.New("object is not a tree")
	ErrUnsupportedMode = errors.New("unsupported open mode")
	ErrVersion         = errors.New("invalid ROOT version")
)

// Mode is a ROOT file open option.
type Mode string

const (
	ModeRead     Mode = "READ"
	ModeUpdate   Mode = "UPDATE"
	ModeRecreate Mode = "RECREATE"
	ModeCreate   Mode = "CREATE"
)

// ParseMode maps open(2)-style modes onto ROOT options:
//
//	"" "r"        READ
//	"r+" "a" "a+" UPDATE
//	"w" "w+"      RECREATE
//
// ROOT option names (READ, UPDATE, RECREATE, CREATE, NEW) are accepted in
// any case.
func ParseMode(mode string) (Mode, error) {
	switch mode {
	case "", "r":
		return ModeRead, nil
	case "r+", "a", "a+":
		return ModeUpdate, nil
	case "w", "w+":
		return ModeRecreate, nil
	}
	switch m := Mode(strings.ToUpper(mode)); m {
	case ModeRead, ModeUpdate, ModeRecreate, ModeCreate:
		return m, nil
	case "NEW":
		return ModeCreate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
}

// ExpandPath expands environment variables and a leading "~".
func ExpandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
