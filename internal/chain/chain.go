// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package chain iterates one tree across many files as if it were a
// single tree.
package chain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/emtf-tree/internal/filter"
	"github.com/ManuGH/emtf-tree/internal/index"
	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/metrics"
	"github.com/ManuGH/emtf-tree/internal/rootio"
	"github.com/ManuGH/emtf-tree/internal/telemetry"
	"github.com/ManuGH/emtf-tree/internal/tree"
)

var (
	ErrNoFiles = errors.New("no files")
	ErrNoTree  = errors.New("no file holds a usable tree")
)

// Reasons a file is skipped.
const (
	SkipOpen       = "open"
	SkipMissing    = "missing"
	SkipNotATree   = "not_tree"
	SkipNoBranches = "no_branches"
)

const defaultProgressInterval = time.Minute

// FileChange is passed to hooks whenever the chain moves to a new file.
type FileChange struct {
	Name string
	File rootio.Directory
	Tree *tree.Tree
}

// Hook runs after the buffer of a new file has been set up.
type Hook func(ctx context.Context, fc FileChange) error

// Indexer caches per-file metadata.
type Indexer interface {
	Lookup(ctx context.Context, file, tree string, load index.Loader) (index.Meta, error)
}

// Config describes what a chain reads.
type Config struct {
	// Name is the path of the tree inside every file.
	Name string
	// Buffer is bound to the first tree instead of creating a new one.
	Buffer *tree.Buffer
	// Branches, if set, are the only active branches.
	Branches []string
	// IgnoreBranches are deactivated after Branches is applied.
	IgnoreBranches []string
	// Events stops the iteration after this many entries passed the
	// filters. Zero or negative means all.
	Events            int64
	OnFileChange      []Hook
	ReadOnDemand      bool
	AlwaysRead        []string
	IgnoreUnsupported bool
	Filters           *filter.List
	// Opener defaults to rootio.ReadOpener.
	Opener rootio.Opener
	Index  Indexer
	Logger *zerolog.Logger
	// ProgressInterval is how often the entry rate is logged while a
	// file is read. Defaults to one minute.
	ProgressInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Opener == nil {
		c.Opener = rootio.ReadOpener
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = defaultProgressInterval
	}
	return c
}

// Skip records a file the chain could not use.
type Skip struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// fileSource yields file names in order.
type fileSource interface {
	next(ctx context.Context) (string, bool, error)
	reset()
	remaining() (int, bool)
	len() (int, bool)
}

// Chain reads the same tree from a sequence of files.
type Chain struct {
	cfg    Config
	files  fileSource
	logger zerolog.Logger

	buf  *tree.Buffer
	file rootio.Directory
	name string
	tree *tree.Tree

	total     int64
	read      int64
	passed    int64
	processed []string
	skipped   []Skip
}

func newChain(ctx context.Context, cfg Config, files fileSource, component string) (*Chain, error) {
	cfg = cfg.withDefaults()
	c := &Chain{cfg: cfg, files: files, buf: cfg.Buffer}
	if cfg.Logger != nil {
		c.logger = xglog.WithContext(ctx, *cfg.Logger)
	} else {
		c.logger = xglog.WithComponentFromContext(ctx, component)
	}
	c.logger = c.logger.With().Str(xglog.FieldTree, cfg.Name).Logger()

	ok, err := c.rollover(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoTree, cfg.Name)
	}
	return c, nil
}

// Tree is the tree of the current file, nil between passes.
func (c *Chain) Tree() *tree.Tree { return c.tree }

// Buffer is the buffer shared by every file of the chain.
func (c *Chain) Buffer() *tree.Buffer { return c.buf }

// TotalEvents is the number of entries in the files the last ForEach read
// to the end. A file cut short by ErrStop or the event limit is not
// counted; see Read.
func (c *Chain) TotalEvents() int64 { return c.total }

// Read is the number of entries the last ForEach read, including those of
// a file it stopped in.
func (c *Chain) Read() int64 { return c.read }

// Passed is the number of entries that passed the filters in the last
// ForEach.
func (c *Chain) Passed() int64 { return c.passed }

// Files lists the files read by the last ForEach.
func (c *Chain) Files() []string { return append([]string(nil), c.processed...) }

// Skipped lists the files the last ForEach could not use.
func (c *Chain) Skipped() []Skip { return append([]Skip(nil), c.skipped...) }

// Filters returns the configured filters.
func (c *Chain) Filters() *filter.List { return c.cfg.Filters }

// Reset closes the current file and rewinds to the first file. The
// buffer is kept.
func (c *Chain) Reset() {
	c.closeFile()
	c.files.reset()
}

func (c *Chain) closeFile() {
	c.tree = nil
	if c.file == nil {
		return
	}
	if err := c.file.Close(); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldFile, c.name).Msg("close file")
	}
	c.file = nil
}

// Close releases the current file.
func (c *Chain) Close() error {
	c.closeFile()
	return nil
}

func (c *Chain) skip(name, reason string, err error) {
	metrics.RecordFileSkipped(reason)
	s := Skip{File: name, Reason: reason}
	if err != nil {
		s.Error = err.Error()
	}
	c.skipped = append(c.skipped, s)
}

// rollover moves to the next file that holds a usable tree. It reports
// false once the files are exhausted.
func (c *Chain) rollover(ctx context.Context) (bool, error) {
	for {
		name, ok, err := c.files.next(ctx)
		if err != nil || !ok {
			return false, err
		}
		if n, known := c.files.remaining(); known {
			c.logger.Info().Int(xglog.FieldRemaining, n+1).Msg("files remaining")
		}
		ev := c.logger.Info().Str(xglog.FieldFile, name)
		if st, err := os.Stat(rootio.ExpandPath(name)); err == nil {
			ev = ev.Str(xglog.FieldSize, humanize.Bytes(uint64(st.Size())))
		}
		ev.Msg("current file")

		c.closeFile()
		dir, err := c.cfg.Opener.Open(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			c.logger.Warn().Err(err).Str(xglog.FieldFile, name).Msg("could not open file (skipping)")
			c.skip(name, SkipOpen, err)
			continue
		}
		c.file, c.name = dir, name

		src, err := dir.Tree(c.cfg.Name)
		switch {
		case errors.Is(err, rootio.ErrNotATree):
			c.logger.Warn().Str(xglog.FieldFile, name).Msg("object is not a tree (skipping)")
			c.skip(name, SkipNotATree, err)
			c.closeFile()
			continue
		case err != nil:
			c.logger.Warn().Err(err).Str(xglog.FieldFile, name).Msg("tree does not exist in file (skipping)")
			c.skip(name, SkipMissing, err)
			c.closeFile()
			continue
		}

		t := tree.New(src,
			tree.WithReadOnDemand(c.cfg.ReadOnDemand),
			tree.WithAlwaysRead(c.cfg.AlwaysRead...),
			tree.WithLogger(c.logger))
		if len(t.Branches()) == 0 {
			c.logger.Warn().Str(xglog.FieldFile, name).Msg("tree with no branches (skipping)")
			c.skip(name, SkipNoBranches, nil)
			c.closeFile()
			continue
		}
		if c.cfg.Branches != nil {
			t.Activate(c.cfg.Branches, true)
		}
		if c.cfg.IgnoreBranches != nil {
			t.Deactivate(c.cfg.IgnoreBranches, false)
		}
		if c.buf == nil {
			err = t.CreateBuffer(c.cfg.IgnoreUnsupported)
		} else {
			err = t.UpdateBuffer(c.buf, true)
		}
		if err != nil {
			return false, fmt.Errorf("file %q: %w", name, err)
		}
		c.buf = t.Buffer()
		c.tree = t
		metrics.RecordFileOpened()

		fc := FileChange{Name: name, File: dir, Tree: t}
		for _, hook := range c.cfg.OnFileChange {
			if err := hook(ctx, fc); err != nil {
				return false, fmt.Errorf("file change hook on %q: %w", name, err)
			}
		}
		return true, nil
	}
}

// ForEach rewinds the chain and calls fn with the buffer for every entry
// that passes the filters, file after file. fn may return tree.ErrStop to
// end the iteration early. Filters are finalized when the iteration ends
// without error.
func (c *Chain) ForEach(ctx context.Context, fn func(*tree.Buffer) error) error {
	c.Reset()
	c.total, c.read, c.passed = 0, 0, 0
	c.processed, c.skipped = nil, nil

	for {
		ok, err := c.rollover(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		stop, err := c.readFile(ctx, fn)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	c.cfg.Filters.Finalize()
	return nil
}

func (c *Chain) readFile(ctx context.Context, fn func(*tree.Buffer) error) (stop bool, err error) {
	t, name := c.tree, c.name
	total := t.Entries()
	ctx, span := telemetry.Tracer("chain").Start(ctx, "chain.file",
		trace.WithAttributes(telemetry.FileAttributes(name, c.cfg.Name, total)...))
	defer span.End()

	var read, passed int64
	start := time.Now()
	progress := &rate.Sometimes{Interval: c.cfg.ProgressInterval}
	progress.Do(func() {})

	err = t.ForEach(ctx, func(buf *tree.Buffer) error {
		read++
		ok, err := c.cfg.Filters.Apply(buf)
		if err != nil {
			return err
		}
		if ok {
			if err := fn(buf); err != nil {
				if errors.Is(err, tree.ErrStop) {
					stop = true
				}
				return err
			}
			passed++
			if c.cfg.Events > 0 && c.passed+passed >= c.cfg.Events {
				stop = true
				return tree.ErrStop
			}
		}
		progress.Do(func() {
			ev := c.logger.Info().Str(xglog.FieldRate, entryRate(read, time.Since(start)))
			if total > 0 {
				ev = ev.Float64(xglog.FieldProgress, 100*float64(read)/float64(total))
			}
			ev.Msg("reading current tree")
		})
		return nil
	})

	elapsed := time.Since(start)
	c.read += read
	if err == nil && !stop {
		c.total += read
	}
	c.passed += passed
	c.processed = append(c.processed, name)
	metrics.RecordEntries(c.cfg.Name, read, passed)
	metrics.ObserveFileDuration(elapsed)
	span.SetAttributes(telemetry.IterationAttributes(read, passed)...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(fmt.Sprintf("%T", err))...)
		return false, fmt.Errorf("file %q: %w", name, err)
	}
	c.logger.Info().
		Str(xglog.FieldFile, name).
		Int64(xglog.FieldEntries, read).
		Int64(xglog.FieldPassed, passed).
		Str(xglog.FieldRate, entryRate(read, elapsed)).
		Msg("finished file")
	return stop, nil
}

func entryRate(n int64, d time.Duration) string {
	if d <= 0 {
		return humanize.Comma(n)
	}
	return humanize.Comma(int64(float64(n) / d.Seconds()))
}

// Entries sums the entries of the tree over every file of a TreeChain,
// skipping files that cannot be read. A TreeQueue cannot know its files in
// advance and reports the entries of the current tree.
func (c *Chain) Entries(ctx context.Context) (int64, error) {
	lf, ok := c.files.(*listFiles)
	if !ok {
		if c.tree == nil {
			return 0, nil
		}
		return c.tree.Entries(), nil
	}
	var sum int64
	for _, name := range lf.files {
		n, err := c.fileEntries(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			c.logger.Debug().Err(err).Str(xglog.FieldFile, name).Msg("not counted")
			continue
		}
		sum += n
	}
	return sum, nil
}

func (c *Chain) fileEntries(ctx context.Context, name string) (int64, error) {
	load := func(ctx context.Context) (index.Meta, error) {
		dir, err := c.cfg.Opener.Open(ctx, name)
		if err != nil {
			return index.Meta{}, err
		}
		defer dir.Close()
		src, err := dir.Tree(c.cfg.Name)
		if err != nil {
			return index.Meta{}, err
		}
		m := index.Meta{Entries: src.Entries()}
		for _, b := range src.Branches() {
			m.Branches = append(m.Branches, b.Name)
		}
		return m, nil
	}
	if c.cfg.Index == nil {
		m, err := load(ctx)
		return m.Entries, err
	}
	m, err := c.cfg.Index.Lookup(ctx, rootio.ExpandPath(name), c.cfg.Name, load)
	return m.Entries, err
}
