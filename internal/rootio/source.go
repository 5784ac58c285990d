// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rootio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"

	"go-hep.org/x/hep/groot/rtree"

	"github.com/ManuGH/emtf-tree/internal/tree"
	"github.com/ManuGH/emtf-tree/internal/treetypes"
)

// source exposes a groot tree as a tree.Source.
type source struct {
	name     string
	t        rtree.Tree
	branches []tree.BranchInfo
}

func newSource(name string, t rtree.Tree) *source {
	s := &source{name: name, t: t}
	for _, b := range t.Branches() {
		s.branches = append(s.branches, branchInfo(b))
	}
	return s
}

func (s *source) Name() string                { return s.name }
func (s *source) Entries() int64              { return s.t.Entries() }
func (s *source) Branches() []tree.BranchInfo { return append([]tree.BranchInfo(nil), s.branches...) }

func branchInfo(b rtree.Branch) tree.BranchInfo {
	leaves := b.Leaves()
	info := tree.BranchInfo{Name: b.Name(), Leaves: len(leaves)}
	if len(leaves) != 1 {
		info.Type = b.Class()
		return info
	}
	leaf := leaves[0]
	info.Type = leafType(leaf)
	switch {
	case leaf.Class() == "TLeafElement" || leaf.Class() == "TLeafC":
	case leaf.LeafCount() != nil:
		info.Type += "[]"
		info.Count = leaf.LeafCount().Branch().Name()
	case leaf.Len() > 1:
		info.Type = fmt.Sprintf("%s[%d]", info.Type, leaf.Len())
	}
	return info
}

// leafType names the element type of a leaf the way treetypes.New
// expects it.
func leafType(leaf rtree.Leaf) string {
	switch leaf.Class() {
	case "TLeafElement":
		return elementType(leaf)
	case "TLeafC":
		return "string"
	}
	if info, ok := treetypes.InfoForKind(leaf.Kind()); ok {
		return info.Name
	}
	return leaf.TypeName()
}

// elementType names a TLeafElement from its Go type. groot cannot name
// STL leaves itself: their reflect types are unnamed.
func elementType(leaf rtree.Leaf) string {
	rt := leaf.Type()
	switch rt.Kind() {
	case reflect.Slice:
		if info, ok := treetypes.InfoForKind(rt.Elem().Kind()); ok {
			return info.VectorName()
		}
	case reflect.String:
		return "string"
	default:
		if info, ok := treetypes.InfoForKind(rt.Kind()); ok {
			return info.Name
		}
	}
	return rt.String()
}

func (s *source) leaf(branch string) (rtree.Leaf, error) {
	b := s.t.Branch(branch)
	if b == nil {
		return nil, fmt.Errorf("%w: %q in tree %q", tree.ErrNoSuchBranch, branch, s.name)
	}
	leaves := b.Leaves()
	if len(leaves) != 1 {
		return nil, fmt.Errorf("%w: branch %q has %d leaves", tree.ErrUnsupportedBranch, branch, len(leaves))
	}
	return leaves[0], nil
}

// Scan reads [beg, end) with a groot reader running in its own goroutine.
// The reader hands over one entry at a time and waits until the consumer
// asks for the next one, so targets are never overwritten while in use.
func (s *source) Scan(ctx context.Context, bindings []tree.Binding, beg, end int64) (tree.Scanner, error) {
	beg, end = tree.ScanRange(s.Entries(), beg, end)

	var (
		rvars  []rtree.ReadVar
		counts []rtree.ReadVar
		fixups []func()
		bound  = map[string]bool{}
	)
	for _, b := range bindings {
		bound[b.Branch] = true
	}
	for _, b := range bindings {
		leaf, err := s.leaf(b.Branch)
		if err != nil {
			return nil, err
		}
		target := b.Target
		if fix, scratch, ok := scalarFromArray(leaf, target); ok {
			target = scratch
			fixups = append(fixups, fix)
		}
		rvars = append(rvars, rtree.ReadVar{Name: b.Branch, Leaf: leaf.Name(), Value: target})

		if lc := leaf.LeafCount(); lc != nil {
			name := lc.Branch().Name()
			if !bound[name] {
				bound[name] = true
				counts = append(counts, rtree.ReadVar{Name: name, Leaf: lc.Name(), Value: reflect.New(lc.Type()).Interface()})
			}
		}
	}

	sc := &scanner{
		entries: make(chan int64),
		ack:     make(chan struct{}),
		done:    make(chan struct{}),
	}
	if len(rvars) == 0 {
		close(sc.entries)
		close(sc.done)
		return sc, nil
	}
	r, err := rtree.NewReader(s.t, append(counts, rvars...), rtree.WithRange(beg, end))
	if err != nil {
		return nil, fmt.Errorf("tree %q: %w", s.name, err)
	}

	ctx, sc.cancel = context.WithCancel(ctx)
	sc.ctx = ctx
	go sc.run(r, fixups)
	return sc, nil
}

// scalarFromArray handles Char_t[2]-style branches bound to a scalar: the
// reader decodes into a scratch array whose first element is copied out.
func scalarFromArray(leaf rtree.Leaf, target any) (func(), any, bool) {
	// Len dereferences the count leaf, which has no value before a reader
	// exists, so variable-length leaves must be ruled out first.
	if leaf.LeafCount() != nil || leaf.Class() == "TLeafElement" || leaf.Len() <= 1 {
		return nil, nil, false
	}
	dst := reflect.ValueOf(target)
	if dst.Kind() != reflect.Pointer {
		return nil, nil, false
	}
	switch dst.Elem().Kind() {
	case reflect.Array, reflect.Slice, reflect.String:
		return nil, nil, false
	}
	scratch := reflect.New(reflect.ArrayOf(leaf.Len(), dst.Elem().Type()))
	fix := func() { dst.Elem().Set(scratch.Elem().Index(0)) }
	return fix, scratch.Interface(), true
}

type scanner struct {
	ctx    context.Context
	cancel context.CancelFunc

	entries chan int64
	ack     chan struct{}
	done    chan struct{}
	err     error // set before entries is closed

	pending bool
}

func (s *scanner) run(r *rtree.Reader, fixups []func()) {
	defer close(s.done)
	defer close(s.entries)
	err := r.Read(func(rctx rtree.RCtx) error {
		for _, fix := range fixups {
			fix()
		}
		select {
		case s.entries <- rctx.Entry:
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
		select {
		case <-s.ack:
			return nil
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	})
	if cerr := r.Close(); err == nil {
		err = cerr
	}
	s.err = err
}

func (s *scanner) Next() (int64, error) {
	if s.pending {
		s.pending = false
		select {
		case s.ack <- struct{}{}:
		case <-s.done:
		}
	}
	i, ok := <-s.entries
	if !ok {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	s.pending = true
	return i, nil
}

// Close stops the reader and waits for it to exit.
func (s *scanner) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	if s.err != nil && !errors.Is(s.err, context.Canceled) {
		return s.err
	}
	return nil
}
