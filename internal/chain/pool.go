// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/emtf-tree/internal/filter"
	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/metrics"
	"github.com/ManuGH/emtf-tree/internal/tree"
)

// Pool runs several TreeQueues over one channel of files. Every worker
// owns its buffer and a clone of the filters; their cut-flows are merged
// at the end.
type Pool struct {
	cfg     Config
	workers int
	files   <-chan string
}

// PoolResult sums what the workers read.
type PoolResult struct {
	Entries int64
	Passed  int64
	CutFlow []filter.Stage
	Files   []string
	Skipped []Skip
}

// NewPool returns a pool of workers reading files. cfg.Buffer must be nil
// since a buffer cannot be shared between workers. Events applies to each
// worker separately.
func NewPool(cfg Config, workers int, files <-chan string) (*Pool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("pool needs at least one worker, got %d", workers)
	}
	if cfg.Buffer != nil {
		return nil, errors.New("pool workers cannot share a buffer")
	}
	return &Pool{cfg: cfg, workers: workers, files: files}, nil
}

// Run starts the workers and waits for them. fn is called concurrently
// from different workers, each with its own buffer. The first error
// cancels the other workers. A worker that finds no usable file before
// the queue ends is idle and not an error.
func (p *Pool) Run(ctx context.Context, fn func(worker int, buf *tree.Buffer) error) (PoolResult, error) {
	var (
		mu    sync.Mutex
		res   PoolResult
		flows [][]filter.Stage
	)
	g, ctx := errgroup.WithContext(ctx)
	for w := range p.workers {
		g.Go(func() error {
			metrics.WorkerStarted()
			defer metrics.WorkerStopped()

			wctx := xglog.ContextWithWorker(ctx, w)
			logger := xglog.WithComponentFromContext(wctx, "pool")
			cfg := p.cfg
			cfg.Filters = p.cfg.Filters.Clone()
			cfg.Logger = &logger

			q, err := NewTreeQueue(wctx, cfg, p.files)
			if errors.Is(err, ErrNoTree) {
				logger.Info().Msg("worker found no files")
				return nil
			}
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			defer q.Close()

			err = q.ForEach(wctx, func(buf *tree.Buffer) error { return fn(w, buf) })
			mu.Lock()
			res.Entries += q.Read()
			res.Passed += q.Passed()
			res.Files = append(res.Files, q.Files()...)
			res.Skipped = append(res.Skipped, q.Skipped()...)
			flows = append(flows, cfg.Filters.CutFlow())
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			logger.Info().
				Int64(xglog.FieldEntries, q.Read()).
				Int64(xglog.FieldPassed, q.Passed()).
				Msg("worker done")
			return nil
		})
	}
	err := g.Wait()

	merged, mergeErr := filter.MergeCutFlows(flows...)
	if mergeErr != nil && err == nil {
		err = mergeErr
	}
	res.CutFlow = merged
	if res.CutFlow == nil {
		res.CutFlow = p.cfg.Filters.CutFlow()
	}
	return res, err
}
