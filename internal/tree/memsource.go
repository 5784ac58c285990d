// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tree

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"
)

// MemSource is an in-memory Source. Each branch is a column holding one
// value per entry.
type MemSource struct {
	name     string
	entries  int64
	branches []BranchInfo
	columns  map[string][]any

	mu    sync.Mutex
	reads map[string]int64
}

// NewMemSource returns an empty in-memory tree.
func NewMemSource(name string) *MemSource {
	return &MemSource{
		name:    name,
		entries: -1,
		columns: map[string][]any{},
		reads:   map[string]int64{},
	}
}

// AddColumn adds a single-leaf branch. All columns must hold the same
// number of entries.
func (m *MemSource) AddColumn(name, typ string, values ...any) error {
	return m.add(BranchInfo{Name: name, Type: typ, Leaves: 1}, values)
}

// AddVariableColumn adds a variable-length array branch whose length is
// stored in the count branch.
func (m *MemSource) AddVariableColumn(name, typ, count string, values ...any) error {
	return m.add(BranchInfo{Name: name, Type: typ, Leaves: 1, Count: count}, values)
}

// AddBranch registers a branch without values, e.g. one with several
// leaves. It reads as zero values.
func (m *MemSource) AddBranch(info BranchInfo) {
	m.branches = append(m.branches, info)
}

func (m *MemSource) add(info BranchInfo, values []any) error {
	if _, dup := m.columns[info.Name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateBranch, info.Name)
	}
	if m.entries >= 0 && int64(len(values)) != m.entries {
		return fmt.Errorf("column %q has %d entries, tree has %d", info.Name, len(values), m.entries)
	}
	m.entries = int64(len(values))
	m.columns[info.Name] = values
	m.branches = append(m.branches, info)
	return nil
}

func (m *MemSource) Name() string { return m.name }

func (m *MemSource) Entries() int64 {
	if m.entries < 0 {
		return 0
	}
	return m.entries
}

func (m *MemSource) Branches() []BranchInfo {
	out := make([]BranchInfo, len(m.branches))
	copy(out, m.branches)
	return out
}

// Reads returns how many entries of a branch have been decoded.
func (m *MemSource) Reads(branch string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[branch]
}

func (m *MemSource) Scan(ctx context.Context, bindings []Binding, beg, end int64) (Scanner, error) {
	for _, b := range bindings {
		if !m.hasBranch(b.Branch) {
			return nil, fmt.Errorf("%w: %q in tree %q", ErrNoSuchBranch, b.Branch, m.name)
		}
		if err := checkTarget(b.Target); err != nil {
			return nil, fmt.Errorf("branch %q: %w", b.Branch, err)
		}
	}
	beg, end = ScanRange(m.Entries(), beg, end)
	return &memScanner{src: m, ctx: ctx, bindings: bindings, next: beg, end: end}, nil
}

func (m *MemSource) hasBranch(name string) bool {
	for _, b := range m.branches {
		if b.Name == name {
			return true
		}
	}
	return false
}

func (m *MemSource) countRead(branch string) {
	m.mu.Lock()
	m.reads[branch]++
	m.mu.Unlock()
}

type memScanner struct {
	src      *MemSource
	ctx      context.Context
	bindings []Binding
	next     int64
	end      int64
}

func (s *memScanner) Next() (int64, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	if s.next >= s.end {
		return 0, io.EOF
	}
	i := s.next
	for _, b := range s.bindings {
		col, ok := s.src.columns[b.Branch]
		if !ok {
			continue
		}
		if err := setTarget(b.Target, col[i]); err != nil {
			return 0, fmt.Errorf("entry %d of branch %q: %w", i, b.Branch, err)
		}
		s.src.countRead(b.Branch)
	}
	s.next++
	return i, nil
}

func (s *memScanner) Close() error { return nil }

func checkTarget(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("target %T is not a non-nil pointer", target)
	}
	return nil
}

// setTarget decodes v into the value target points to, converting element
// types where Go allows it.
func setTarget(target, v any) error {
	dst := reflect.ValueOf(target).Elem()
	src := reflect.ValueOf(v)
	if !src.IsValid() {
		dst.SetZero()
		return nil
	}
	switch dst.Kind() {
	case reflect.Array:
		if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
			return fmt.Errorf("cannot decode %T into %s", v, dst.Type())
		}
		dst.SetZero()
		for i := 0; i < min(dst.Len(), src.Len()); i++ {
			if err := setElem(dst.Index(i), src.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Slice:
		if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
			return fmt.Errorf("cannot decode %T into %s", v, dst.Type())
		}
		out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			if err := setElem(out.Index(i), src.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
	default:
		return setElem(dst, src)
	}
	return nil
}

func setElem(dst, src reflect.Value) error {
	if src.Kind() == reflect.Interface {
		src = src.Elem()
	}
	if !src.IsValid() {
		dst.SetZero()
		return nil
	}
	if (dst.Kind() == reflect.String) != (src.Kind() == reflect.String) || !src.Type().ConvertibleTo(dst.Type()) {
		return fmt.Errorf("cannot decode %s into %s", src.Type(), dst.Type())
	}
	dst.Set(src.Convert(dst.Type()))
	return nil
}
