// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/treetypes"
)

// Tree couples a Source with the Buffer its entries are decoded into.
type Tree struct {
	src    Source
	infos  []BranchInfo
	byName map[string]BranchInfo
	active map[string]bool

	buf   *Buffer
	bound map[string]treetypes.Value

	readOnDemand bool
	alwaysRead   []string
	logger       zerolog.Logger
}

// Option configures a Tree.
type Option func(*Tree)

// WithReadOnDemand reads a branch only when its value is first accessed
// within an entry.
func WithReadOnDemand(on bool) Option {
	return func(t *Tree) { t.readOnDemand = on }
}

// WithAlwaysRead names branches that are read for every entry when reading
// on demand.
func WithAlwaysRead(branches ...string) Option {
	return func(t *Tree) { t.alwaysRead = append(t.alwaysRead, branches...) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tree) { t.logger = logger }
}

// New wraps src. Every branch starts active and the buffer starts empty.
func New(src Source, opts ...Option) *Tree {
	t := &Tree{
		src:    src,
		infos:  src.Branches(),
		byName: map[string]BranchInfo{},
		active: map[string]bool{},
		buf:    newBuffer(),
		bound:  map[string]treetypes.Value{},
		logger: xglog.WithComponent("tree"),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With().Str(xglog.FieldTree, src.Name()).Logger()
	for _, info := range t.infos {
		t.byName[info.Name] = info
		t.active[info.Name] = true
	}
	return t
}

func (t *Tree) Name() string    { return t.src.Name() }
func (t *Tree) Source() Source  { return t.src }
func (t *Tree) Buffer() *Buffer { return t.buf }
func (t *Tree) Entries() int64  { return t.src.Entries() }

func (t *Tree) ReadOnDemand() bool { return t.readOnDemand }

// Branches returns the branches in tree order.
func (t *Tree) Branches() []BranchInfo {
	return slices.Clone(t.infos)
}

func (t *Tree) BranchNames() []string {
	names := make([]string, len(t.infos))
	for i, info := range t.infos {
		names[i] = info.Name
	}
	return names
}

func (t *Tree) HasBranch(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// BranchType returns the type specification of a branch, e.g. "Int_t",
// "Float_t[4]" or "vector<float>".
func (t *Tree) BranchType(name string) (string, error) {
	info, ok := t.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoSuchBranch, name)
	}
	return info.Type, nil
}

// BranchSupported reports whether a branch has exactly one leaf.
func (t *Tree) BranchSupported(name string) bool {
	info, ok := t.byName[name]
	return ok && info.Supported()
}

func (t *Tree) IsActive(name string) bool {
	return t.active[name]
}

// Glob returns the branch names matching any of patterns and none of
// exclude. Patterns use shell syntax ('*', '?', '[...]').
func (t *Tree) Glob(patterns, exclude []string) []string {
	var matches []string
	for _, name := range t.BranchNames() {
		if !matchAny(patterns, name) || matchAny(exclude, name) {
			continue
		}
		matches = append(matches, name)
	}
	return matches
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Activate turns branches on. Names containing '*' are globbed; plain
// names that do not exist are ignored. With exclusive set every other
// branch is turned off.
func (t *Tree) Activate(branches []string, exclusive bool) {
	t.setStatus(branches, exclusive, true)
}

// Deactivate turns branches off. With exclusive set every other branch is
// turned on.
func (t *Tree) Deactivate(branches []string, exclusive bool) {
	t.setStatus(branches, exclusive, false)
}

func (t *Tree) setStatus(branches []string, exclusive, on bool) {
	if exclusive {
		for name := range t.active {
			t.active[name] = !on
		}
	}
	for _, b := range branches {
		if strings.Contains(b, "*") {
			for _, name := range t.Glob([]string{b}, nil) {
				t.active[name] = on
			}
			continue
		}
		if t.HasBranch(b) {
			t.active[b] = on
		}
	}
}

// CreateBuffer builds a buffer from the active branches and binds it.
func (t *Tree) CreateBuffer(ignoreUnsupported bool) error {
	var branches []Branch
	for _, info := range t.infos {
		if !t.active[info.Name] {
			continue
		}
		if !info.Supported() {
			if !ignoreUnsupported {
				return fmt.Errorf("%w: branch %q has %d leaves", ErrUnsupportedBranch, info.Name, info.Leaves)
			}
			t.logger.Warn().Str(xglog.FieldBranch, info.Name).Msg("ignoring unsupported branch")
			continue
		}
		branches = append(branches, info.Branch())
	}
	buf, err := NewBuffer(branches, ignoreUnsupported)
	if err != nil {
		return err
	}
	return t.SetBuffer(buf, SetBufferOptions{})
}

// SetBufferOptions controls SetBuffer.
type SetBufferOptions struct {
	// Branches limits binding to these names; nil means all of the buffer.
	Branches []string
	// IgnoreBranches are not bound.
	IgnoreBranches []string
	// IgnoreMissing skips buffer names without a branch instead of failing.
	IgnoreMissing bool
	// TransferObjects copies the buffer's objects and collections.
	TransferObjects bool
}

// SetBuffer binds the values of buf to the branches of the same name and
// merges them into the tree's buffer.
func (t *Tree) SetBuffer(buf *Buffer, opts SetBufferOptions) error {
	names := opts.Branches
	if names == nil {
		names = buf.Keys()
	}
	for _, name := range names {
		if slices.Contains(opts.IgnoreBranches, name) {
			continue
		}
		v, ok := buf.values[buf.resolve(name)]
		if !ok {
			return fmt.Errorf("%w: %q not in buffer", ErrNoSuchBranch, name)
		}
		if !t.HasBranch(name) {
			if !opts.IgnoreMissing {
				return fmt.Errorf("%w: cannot bind %q in tree %q", ErrNoSuchBranch, name, t.Name())
			}
			t.logger.Warn().Str(xglog.FieldBranch, name).Msg("skipping buffer entry without a branch in the tree")
			continue
		}
		t.bound[name] = v
	}
	t.buf.Update(buf)
	if opts.TransferObjects {
		t.buf.SetObjects(buf)
	}
	return nil
}

// UpdateBuffer binds buf and merges it into the tree's buffer.
func (t *Tree) UpdateBuffer(buf *Buffer, transferObjects bool) error {
	return t.SetBuffer(buf, SetBufferOptions{TransferObjects: transferObjects})
}

func (t *Tree) binding(name string) (Binding, bool) {
	v, ok := t.bound[name]
	if !ok {
		return Binding{}, false
	}
	return Binding{Branch: name, Count: t.byName[name].Count, Target: v.Target()}, true
}

// activeBindings returns the bindings of the active bound branches in
// tree order.
func (t *Tree) activeBindings() []Binding {
	var out []Binding
	for _, info := range t.infos {
		if !t.active[info.Name] {
			continue
		}
		if b, ok := t.binding(info.Name); ok {
			out = append(out, b)
		}
	}
	return out
}

func (t *Tree) scan(ctx context.Context, bindings []Binding, beg int64) (Scanner, error) {
	if len(bindings) == 0 {
		beg, end := ScanRange(t.Entries(), beg, -1)
		return &emptyScanner{ctx: ctx, next: beg, end: end}, nil
	}
	return t.src.Scan(ctx, bindings, beg, -1)
}

// ForEach calls fn with the buffer holding each entry in turn. If fn
// returns ErrStop iteration ends and ForEach returns nil. Collections are
// reset after every entry.
func (t *Tree) ForEach(ctx context.Context, fn func(*Buffer) error) error {
	if t.buf.Len() == 0 {
		t.logger.Warn().Msg("buffer does not exist or is empty")
		if err := t.CreateBuffer(false); err != nil {
			return err
		}
	}
	var err error
	if t.readOnDemand {
		err = t.forEachOnDemand(ctx, fn)
	} else {
		err = t.forEachEager(ctx, fn)
	}
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

func (t *Tree) forEachEager(ctx context.Context, fn func(*Buffer) error) error {
	sc, err := t.scan(ctx, t.activeBindings(), 0)
	if err != nil {
		return err
	}
	defer sc.Close()
	for {
		i, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		t.buf.entry = i
		if err := fn(t.buf); err != nil {
			return err
		}
		t.buf.ResetCollections()
	}
}

func (t *Tree) forEachOnDemand(ctx context.Context, fn func(*Buffer) error) error {
	var always []Binding
	for _, name := range t.alwaysRead {
		if !t.HasBranch(name) {
			return fmt.Errorf("%w: %q is read for every entry but does not exist", ErrNoSuchBranch, name)
		}
		if b, ok := t.binding(name); ok {
			always = append(always, b)
		}
	}
	sc, err := t.scan(ctx, always, 0)
	if err != nil {
		return err
	}
	defer sc.Close()

	lazy := newLazyLoader(ctx, t)
	defer lazy.close()
	t.buf.loader = lazy
	defer func() { t.buf.loader = nil }()

	for {
		i, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		t.buf.entry = i
		lazy.begin(i, always)
		if err := fn(t.buf); err != nil {
			return err
		}
		t.buf.ResetCollections()
	}
}

// lazyLoader keeps one cursor per branch read on demand. Cursors only move
// forward; reading an entry behind a cursor reopens it.
type lazyLoader struct {
	ctx     context.Context
	tree    *Tree
	entry   int64
	loaded  map[string]bool
	cursors map[string]*cursor
}

type cursor struct {
	sc   Scanner
	next int64
}

func newLazyLoader(ctx context.Context, t *Tree) *lazyLoader {
	return &lazyLoader{ctx: ctx, tree: t, loaded: map[string]bool{}, cursors: map[string]*cursor{}}
}

func (l *lazyLoader) begin(entry int64, always []Binding) {
	l.entry = entry
	clear(l.loaded)
	for _, b := range always {
		l.loaded[b.Branch] = true
	}
}

func (l *lazyLoader) load(name string) error {
	if l.loaded[name] {
		return nil
	}
	b, ok := l.tree.binding(name)
	if !ok {
		// Values added to the buffer by hand are not read from the tree.
		return nil
	}
	c := l.cursors[name]
	if c == nil || c.next > l.entry {
		if c != nil {
			_ = c.sc.Close()
		}
		sc, err := l.tree.src.Scan(l.ctx, []Binding{b}, l.entry, -1)
		if err != nil {
			return err
		}
		c = &cursor{sc: sc, next: l.entry}
		l.cursors[name] = c
	}
	for c.next <= l.entry {
		i, err := c.sc.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("branch %q ended before entry %d", name, l.entry)
			}
			return err
		}
		c.next = i + 1
	}
	l.loaded[name] = true
	return nil
}

func (l *lazyLoader) close() {
	for name, c := range l.cursors {
		if err := c.sc.Close(); err != nil {
			l.tree.logger.Debug().Err(err).Str(xglog.FieldBranch, name).Msg("close branch cursor")
		}
	}
	clear(l.cursors)
}
