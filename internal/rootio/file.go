// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rootio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"

	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/tree"
)

// Directory is an opened file holding trees.
type Directory interface {
	Path() string
	// Tree returns the tree stored under name; nested directories are
	// separated by '/'.
	Tree(name string) (tree.Source, error)
	Close() error
}

// Opener opens files for reading.
type Opener interface {
	Open(ctx context.Context, name string) (Directory, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, name string) (Directory, error)

func (f OpenerFunc) Open(ctx context.Context, name string) (Directory, error) {
	return f(ctx, name)
}

// ReadOpener opens ROOT files read-only.
var ReadOpener Opener = OpenerFunc(func(ctx context.Context, name string) (Directory, error) {
	return Open(ctx, name, "r")
})

// File is a ROOT file opened with groot.
type File struct {
	path string
	mode Mode
	f    *riofs.File
}

// Open opens a ROOT file. See ParseMode for the accepted modes; files
// cannot be updated in place.
func Open(ctx context.Context, filename, mode string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	p := ExpandPath(filename)
	logger := xglog.WithComponentFromContext(ctx, "rootio")
	logger.Debug().
		Str(xglog.FieldPath, p).
		Str("mode", string(m)).
		Msg("opening file")

	var f *riofs.File
	switch m {
	case ModeRead:
		f, err = groot.Open(p)
	case ModeRecreate:
		f, err = groot.Create(p)
	case ModeCreate:
		if _, statErr := os.Stat(p); statErr == nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrOpen, p, os.ErrExist)
		}
		f, err = groot.Create(p)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, m)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrOpen, p, err)
	}
	return &File{path: p, mode: m, f: f}, nil
}

func (f *File) Path() string { return f.path }
func (f *File) Mode() Mode   { return f.mode }

// Raw returns the underlying groot file.
func (f *File) Raw() *riofs.File { return f.f }

// Version returns the ROOT version the file was written with.
func (f *File) Version() (Version, error) {
	return ParseVersion(f.f.Version())
}

// Tree returns the tree stored under name.
func (f *File) Tree(name string) (tree.Source, error) {
	obj, err := riofs.Dir(f.f).Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q in %q: %w", ErrDoesNotExist, name, f.path, err)
	}
	t, ok := obj.(rtree.Tree)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q is a %s", ErrNotATree, name, f.path, obj.Class())
	}
	return newSource(name, t), nil
}

// TreeKey locates a tree inside a file.
type TreeKey struct {
	Path  string // slash separated path from the top directory
	Class string
}

// Trees lists every tree in the file, descending into directories.
func (f *File) Trees() ([]TreeKey, error) {
	var out []TreeKey
	err := walkTrees(f.f, "", &out)
	return out, err
}

func walkTrees(dir riofs.Directory, prefix string, out *[]TreeKey) error {
	seen := map[string]bool{}
	for _, k := range dir.Keys() {
		// Keys lists every cycle; the first one is the most recent.
		if seen[k.Name()] {
			continue
		}
		seen[k.Name()] = true
		name := path.Join(prefix, k.Name())
		class := k.ClassName()
		switch {
		case strings.HasPrefix(class, "TDirectory"):
			obj, err := k.Object()
			if err != nil {
				return fmt.Errorf("read directory %q: %w", name, err)
			}
			sub, ok := obj.(riofs.Directory)
			if !ok {
				continue
			}
			if err := walkTrees(sub, name, out); err != nil {
				return err
			}
		case class == "TTree" || class == "TNtuple" || class == "TNtupleD":
			*out = append(*out, TreeKey{Path: name, Class: class})
		}
	}
	return nil
}

func (f *File) Close() error {
	if err := f.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
