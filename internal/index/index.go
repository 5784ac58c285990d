// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package index caches per-file tree metadata so that counting the entries
// of a large chain does not reopen every file.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/metrics"
)

// Meta describes one tree in one file. Size and ModTime identify the file
// version the metadata was taken from.
type Meta struct {
	Entries  int64     `json:"entries"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mtime"`
	Branches []string  `json:"branches,omitempty"`
}

// Loader reads the metadata from the file itself.
type Loader func(ctx context.Context) (Meta, error)

// Index is a badger-backed metadata cache.
type Index struct {
	db     *badger.DB
	group  singleflight.Group
	logger zerolog.Logger
}

// Open opens the cache in dir. An empty dir keeps the cache in memory.
func Open(dir string) (*Index, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index %q: %w", dir, err)
	}
	return &Index{db: db, logger: xglog.WithComponent("index")}, nil
}

func (ix *Index) Close() error { return ix.db.Close() }

func key(file, tree string) []byte {
	return []byte("meta:" + file + "\x00" + tree)
}

// Get returns the cached metadata, if any, without checking staleness.
func (ix *Index) Get(file, tree string) (Meta, bool, error) {
	var m Meta
	err := ix.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(file, tree))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Meta{}, false, nil
	}
	if err != nil {
		return Meta{}, false, err
	}
	return m, true, nil
}

// Put stores metadata.
func (ix *Index) Put(file, tree string, m Meta) error {
	buf, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return ix.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(file, tree), buf)
	})
}

// Invalidate drops cached metadata.
func (ix *Index) Invalidate(file, tree string) error {
	return ix.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(file, tree))
	})
}

// Lookup returns the metadata of tree in file, calling load when the cache
// has nothing or the file changed since it was cached. Concurrent lookups
// of the same tree share one load. Files that cannot be stat'ed (remote
// URLs) are loaded every time.
func (ix *Index) Lookup(ctx context.Context, file, tree string, load Loader) (Meta, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = file
	}
	st, err := os.Stat(abs)
	if err != nil {
		metrics.RecordIndexLookup("uncached")
		return load(ctx)
	}

	m, ok, err := ix.Get(abs, tree)
	switch {
	case err != nil:
		metrics.RecordIndexLookup("error")
		ix.logger.Warn().Err(err).Str(xglog.FieldPath, abs).Msg("index read failed")
	case ok && m.Size == st.Size() && m.ModTime.Equal(st.ModTime()):
		metrics.RecordIndexLookup("hit")
		return m, nil
	case ok:
		metrics.RecordIndexLookup("stale")
	default:
		metrics.RecordIndexLookup("miss")
	}

	v, err, _ := ix.group.Do(string(key(abs, tree)), func() (any, error) {
		m, err := load(ctx)
		if err != nil {
			return Meta{}, err
		}
		m.Size, m.ModTime = st.Size(), st.ModTime()
		if err := ix.Put(abs, tree, m); err != nil {
			ix.logger.Warn().Err(err).Str(xglog.FieldPath, abs).Msg("index write failed")
		}
		return m, nil
	})
	if err != nil {
		return Meta{}, err
	}
	return v.(Meta), nil
}
