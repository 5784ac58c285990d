// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package watch turns new files in a directory into a feed for a
// TreeQueue.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/metrics"
)

// Config selects what is watched.
type Config struct {
	Dir string
	// Pattern is matched against base names. Defaults to "*.root".
	Pattern string
	// Existing emits the files already present, in name order, before
	// any new one.
	Existing bool
	// Settle is how long a file must go without writes before it is
	// emitted. Defaults to two seconds.
	Settle time.Duration
}

func (c Config) withDefaults() Config {
	if c.Pattern == "" {
		c.Pattern = "*.root"
	}
	if c.Settle <= 0 {
		c.Settle = 2 * time.Second
	}
	return c
}

// Watch emits the path of every matching file once it has settled. Each
// path is emitted at most once. The channel is closed when ctx is
// cancelled.
func Watch(ctx context.Context, cfg Config) (<-chan string, error) {
	cfg = cfg.withDefaults()
	if _, err := filepath.Match(cfg.Pattern, ""); err != nil {
		return nil, fmt.Errorf("pattern %q: %w", cfg.Pattern, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(cfg.Dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %q: %w", cfg.Dir, err)
	}

	var existing []string
	if cfg.Existing {
		existing, err = filepath.Glob(filepath.Join(cfg.Dir, cfg.Pattern))
		if err != nil {
			_ = watcher.Close()
			return nil, err
		}
		slices.Sort(existing)
	}

	logger := xglog.WithComponentFromContext(ctx, "watch")
	logger.Info().
		Str(xglog.FieldPath, cfg.Dir).
		Str("pattern", cfg.Pattern).
		Int("existing", len(existing)).
		Msg("watching directory")

	out := make(chan string)
	go run(ctx, cfg, watcher, existing, out)
	return out, nil
}

func run(ctx context.Context, cfg Config, watcher *fsnotify.Watcher, existing []string, out chan<- string) {
	logger := xglog.WithComponentFromContext(ctx, "watch")
	timers := map[string]*time.Timer{}
	ready := make(chan string)
	done := make(chan struct{})

	defer close(out)
	defer func() { _ = watcher.Close() }()
	defer close(done)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	emitted := map[string]bool{}
	emit := func(name string) bool {
		if emitted[name] {
			return true
		}
		emitted[name] = true
		metrics.RecordWatchedFile()
		logger.Debug().Str(xglog.FieldFile, name).Msg("file ready")
		select {
		case out <- name:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, name := range existing {
		if !emit(name) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("watcher stopped")
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			name := ev.Name
			if match, _ := filepath.Match(cfg.Pattern, filepath.Base(name)); !match || emitted[name] {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
				if t := timers[name]; t != nil {
					t.Reset(cfg.Settle)
					continue
				}
				timers[name] = time.AfterFunc(cfg.Settle, func() {
					select {
					case ready <- name:
					case <-done:
					}
				})
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				if t := timers[name]; t != nil {
					t.Stop()
					delete(timers, name)
				}
			}

		case name := <-ready:
			delete(timers, name)
			if !emit(name) {
				return
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("watch error")
		}
	}
}
