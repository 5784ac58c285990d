// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package tree reads entries of a columnar tree into a typed Buffer.
//
// A Tree wraps a Source (a ROOT TTree, or an in-memory table in tests),
// tracks which branches are active and which buffer values they decode
// into, and iterates entries either eagerly (every bound branch is read
// for every entry) or on demand (a branch is read the first time it is
// accessed within an entry).
package tree

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNoSuchBranch      = errors.New("no such branch")
	ErrDuplicateBranch   = errors.New("duplicate branch name")
	ErrIllegalName       = errors.New("illegal branch name")
	ErrUnsupportedBranch = errors.New("unsupported branch")
	ErrNotIndexed        = errors.New("value is not an array")
	ErrIndexOutOfRange   = errors.New("index out of range")

	// ErrStop ends ForEach early without reporting an error.
	ErrStop = errors.New("stop iteration")
)

// Branch names a branch and the type specification of its values, as
// understood by treetypes.New.
type Branch struct {
	Name string
	Type string
}

// BranchInfo describes a branch of a Source.
type BranchInfo struct {
	Name string
	// Type is the class name for object branches, otherwise the leaf type
	// with "[n]" for fixed arrays or "[]" for variable-length arrays.
	Type string
	// Leaves is the number of leaves; only single-leaf branches are
	// supported.
	Leaves int
	// Count is the branch holding the length of a variable-length array.
	Count string
}

// Supported reports whether the branch can be bound to a buffer value.
func (b BranchInfo) Supported() bool {
	return b.Leaves == 1
}

// Branch returns the name and type pair used to build a buffer value.
func (b BranchInfo) Branch() Branch {
	return Branch{Name: b.Name, Type: b.Type}
}

// Binding routes the values of one branch into Target, the pointer
// returned by treetypes.Value.Target.
type Binding struct {
	Branch string
	Count  string
	Target any
}

// Scanner is a cursor over a range of entries. Next decodes the next entry
// into the bound targets and returns its number, or io.EOF when the range
// is exhausted.
type Scanner interface {
	Next() (int64, error)
	Close() error
}

// Source is a tree that can be scanned.
type Source interface {
	Name() string
	Entries() int64
	Branches() []BranchInfo
	// Scan returns a scanner over entries [beg, end) decoding the bound
	// branches. end < 0 means up to the last entry.
	Scan(ctx context.Context, bindings []Binding, beg, end int64) (Scanner, error)
}

// emptyScanner counts through a range without decoding anything.
type emptyScanner struct {
	ctx  context.Context
	next int64
	end  int64
}

func (s *emptyScanner) Next() (int64, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	if s.next >= s.end {
		return 0, io.EOF
	}
	i := s.next
	s.next++
	return i, nil
}

func (s *emptyScanner) Close() error { return nil }

// ScanRange clamps [beg, end) to the entries of a tree of n entries.
func ScanRange(n, beg, end int64) (int64, int64) {
	if end < 0 || end > n {
		end = n
	}
	if beg < 0 {
		beg = 0
	}
	if beg > end {
		beg = end
	}
	return beg, end
}
