// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rootio

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/emtf-tree/internal/tree"
)

// MemFile is an in-memory Directory.
type MemFile struct {
	Name string
	// Objects maps paths to trees; any other value is stored as a non-tree
	// object.
	Objects map[string]any

	mu     sync.Mutex
	closed bool
}

func (m *MemFile) Path() string { return m.Name }

func (m *MemFile) Tree(name string) (tree.Source, error) {
	obj, ok := m.Objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q", ErrDoesNotExist, name, m.Name)
	}
	src, ok := obj.(tree.Source)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q is a %T", ErrNotATree, name, m.Name, obj)
	}
	return src, nil
}

func (m *MemFile) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (m *MemFile) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MemOpener opens MemFiles by name. Unknown names fail with ErrOpen.
type MemOpener map[string]*MemFile

func (o MemOpener) Open(ctx context.Context, name string) (Directory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := o[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrOpen, name)
	}
	return f, nil
}
