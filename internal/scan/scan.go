// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package scan runs a configured job over its files and reports the
// outcome.
package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/emtf-tree/internal/chain"
	"github.com/ManuGH/emtf-tree/internal/config"
	"github.com/ManuGH/emtf-tree/internal/filter"
	"github.com/ManuGH/emtf-tree/internal/history"
	"github.com/ManuGH/emtf-tree/internal/index"
	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/metrics"
	"github.com/ManuGH/emtf-tree/internal/report"
	"github.com/ManuGH/emtf-tree/internal/rootio"
	"github.com/ManuGH/emtf-tree/internal/telemetry"
	"github.com/ManuGH/emtf-tree/internal/tree"
)

var ErrNoInput = errors.New("job has no input files")

// Deps are the collaborators of a run. Every field is optional.
type Deps struct {
	Opener rootio.Opener
	// Index is used instead of opening job.Index.Dir.
	Index *index.Index
	// History records the report when set.
	History *history.Store
	// Feed replaces the job's file list, e.g. with a Redis or watch feed.
	Feed <-chan string
	// OnEntry is called for every entry that passes the cuts.
	OnEntry func(worker int, buf *tree.Buffer) error
	Status  *Status
}

// Run executes job. The report is returned even when the run fails, with
// the error recorded in it.
func Run(ctx context.Context, job config.Job, deps Deps) (*report.Report, error) {
	rep := report.New(job.Name, job.Tree)
	rep.Workers = job.Workers
	ctx = xglog.ContextWithRunID(ctx, rep.RunID)
	logger := xglog.WithComponentFromContext(ctx, "scan")

	ctx, span := telemetry.Tracer("scan").Start(ctx, "scan.run",
		trace.WithAttributes(telemetry.RunAttributes(rep.RunID, job.Name, job.Workers)...))
	defer span.End()

	deps.Status.start(rep.RunID, job.Name, job.Tree, rep.Started)
	logger.Info().Str(xglog.FieldTree, job.Tree).Int("workers", job.Workers).Msg("run started")

	err := run(ctx, job, deps, rep, logger)
	rep.Finish(err)
	deps.Status.finish(rep.Finished, err)
	metrics.RecordRun(err == nil)
	span.SetAttributes(telemetry.IterationAttributes(rep.Entries, rep.Passed)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if job.Report.JSON != "" {
		if werr := report.WriteJSON(job.Report.JSON, rep); werr != nil {
			logger.Error().Err(werr).Str(xglog.FieldPath, job.Report.JSON).Msg("write report")
			err = errors.Join(err, werr)
		}
	}
	if deps.History != nil {
		if herr := deps.History.Record(ctx, rep); herr != nil {
			logger.Error().Err(herr).Msg("record history")
			err = errors.Join(err, herr)
		}
	}

	ev := logger.Info()
	if err != nil {
		ev = logger.Error().Err(err)
	}
	ev.Int("files", len(rep.Files)).
		Int("skipped", len(rep.Skipped)).
		Str(xglog.FieldEntries, humanize.Comma(rep.Entries)).
		Str(xglog.FieldPassed, humanize.Comma(rep.Passed)).
		Dur("duration", rep.Duration()).
		Msg("run finished")
	return rep, err
}

func run(ctx context.Context, job config.Job, deps Deps, rep *report.Report, logger zerolog.Logger) error {
	filters, err := BuildFilters(job.Cuts)
	if err != nil {
		return err
	}

	cfg := chain.Config{
		Name:              job.Tree,
		Branches:          job.Branches,
		IgnoreBranches:    job.IgnoreBranches,
		Events:            job.Events,
		ReadOnDemand:      job.ReadOnDemand,
		AlwaysRead:        job.AlwaysRead,
		IgnoreUnsupported: job.IgnoreUnsupported,
		Filters:           filters,
		Opener:            deps.Opener,
		ProgressInterval:  job.ProgressInterval,
		OnFileChange: []chain.Hook{
			defineGroups(job),
			func(_ context.Context, fc chain.FileChange) error {
				deps.Status.fileChanged(fc.Name)
				return nil
			},
		},
	}

	if deps.Index != nil {
		cfg.Index = deps.Index
	} else if job.Index.Dir != "" {
		ix, err := index.Open(job.Index.Dir)
		if err != nil {
			return err
		}
		defer ix.Close()
		cfg.Index = ix
	}

	onEntry := func(worker int, buf *tree.Buffer) error {
		deps.Status.passed()
		if deps.OnEntry != nil {
			return deps.OnEntry(worker, buf)
		}
		return nil
	}

	feed := deps.Feed
	if feed == nil {
		files, err := ExpandFiles(job.Files)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return ErrNoInput
		}
		if job.Workers <= 1 {
			return runChain(ctx, cfg, files, onEntry, rep, logger)
		}
		ch := make(chan string, len(files))
		for _, f := range files {
			ch <- f
		}
		close(ch)
		feed = ch
	}

	p, err := chain.NewPool(cfg, max(job.Workers, 1), feed)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx, onEntry)
	rep.Files, rep.Skipped = res.Files, res.Skipped
	rep.Entries, rep.Passed = res.Entries, res.Passed
	rep.CutFlow = res.CutFlow
	return err
}

func runChain(ctx context.Context, cfg chain.Config, files []string, fn func(int, *tree.Buffer) error, rep *report.Report, logger zerolog.Logger) error {
	c, err := chain.NewTreeChain(ctx, cfg, files)
	if err != nil {
		return err
	}
	defer c.Close()

	if n, err := c.Entries(ctx); err == nil {
		logger.Info().Int("files", c.Len()).Str(xglog.FieldEntries, humanize.Comma(n)).Msg("chain ready")
	}
	err = c.ForEach(ctx, func(buf *tree.Buffer) error { return fn(0, buf) })
	rep.Files, rep.Skipped = c.Files(), c.Skipped()
	rep.Entries, rep.Passed = c.Read(), c.Passed()
	rep.CutFlow = c.Filters().CutFlow()
	return err
}

// BuildFilters turns cuts into a filter list in the same order.
func BuildFilters(cuts []config.CutConfig) (*filter.List, error) {
	list := filter.NewList()
	for _, c := range cuts {
		opts := []filter.Option{filter.Passthrough(c.Passthrough)}
		var (
			f   *filter.Filter
			err error
		)
		if c.Collection != "" {
			f, err = filter.CountCut(c.Name, c.Collection, c.Op, c.Value, opts...)
		} else {
			f, err = filter.Cut(c.Name, c.Branch, c.Op, c.Value, opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("cut %q: %w", c.Name, err)
		}
		list.Append(f)
	}
	return list, nil
}

// defineGroups declares the job's objects and collections on the buffer
// of the first file. Later files inherit them with the buffer.
func defineGroups(job config.Job) chain.Hook {
	return func(_ context.Context, fc chain.FileChange) error {
		buf := fc.Tree.Buffer()
		for _, o := range job.Objects {
			if _, ok := buf.Object(o.Name); !ok {
				buf.DefineObject(o.Name, o.Prefix)
			}
		}
		for _, c := range job.Collections {
			if _, ok := buf.Collection(c.Name); !ok {
				buf.DefineCollection(c.Name, c.Prefix, c.Size)
			}
		}
		return nil
	}
}

// ExpandFiles expands glob patterns in order and drops duplicates. Names
// without glob characters are kept even if they do not exist locally,
// since they may be opened remotely.
func ExpandFiles(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, p := range patterns {
		p = rootio.ExpandPath(p)
		if !strings.ContainsAny(p, "*?[") {
			add(p)
			continue
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("file pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			logger := xglog.WithComponent("scan")
			logger.Warn().Str("pattern", p).Msg("pattern matches no files")
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}
