// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package chain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/emtf-tree/internal/filter"
	"github.com/ManuGH/emtf-tree/internal/rootio"
	"github.com/ManuGH/emtf-tree/internal/tree"
)

func feed(names ...string) <-chan string {
	ch := make(chan string, len(names))
	for _, n := range names {
		ch <- n
	}
	close(ch)
	return ch
}

func TestPool_ReadsEveryFileOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var (
		files []*rootio.MemFile
		names []string
	)
	for i := range 6 {
		name := fmt.Sprintf("f%d.root", i)
		files = append(files, eventFile(t, name, i, i))
		names = append(names, name)
	}
	cut, err := filter.Cut("run_ge_3", "evt_run", ">=", 3)
	require.NoError(t, err)
	cfg := Config{Name: treeName, Opener: opener(files...), Filters: filter.NewList(cut)}

	p, err := NewPool(cfg, 4, feed(names...))
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		runs []int
	)
	res, err := p.Run(context.Background(), func(_ int, buf *tree.Buffer) error {
		r, err := buf.Int64("evt_run")
		if err != nil {
			return err
		}
		mu.Lock()
		runs = append(runs, int(r))
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	sort.Ints(runs)
	assert.Equal(t, []int{3, 3, 4, 4, 5, 5}, runs)
	assert.Equal(t, int64(12), res.Entries)
	assert.Equal(t, int64(6), res.Passed)
	assert.ElementsMatch(t, names, res.Files)
	assert.Equal(t, []filter.Stage{{Name: "run_ge_3", Total: 12, Passing: 6}}, res.CutFlow)
	assert.Equal(t, filter.Stage{Name: "run_ge_3"}, cut.Stage(), "workers count on clones")
}

func TestPool_MoreWorkersThanFiles(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := Config{Name: treeName, Opener: opener(eventFile(t, "a.root", 1))}
	p, err := NewPool(cfg, 3, feed("a.root"))
	require.NoError(t, err)
	res, err := p.Run(context.Background(), func(int, *tree.Buffer) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Entries)
}

func TestPool_FirstErrorCancelsOthers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// The channel stays open so idle workers block until cancelled.
	ch := make(chan string, 2)
	ch <- "a.root"
	ch <- "b.root"
	cfg := Config{Name: treeName, Opener: opener(eventFile(t, "a.root", 1), eventFile(t, "b.root", 2))}
	p, err := NewPool(cfg, 2, ch)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = p.Run(context.Background(), func(int, *tree.Buffer) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestNewPool_Validation(t *testing.T) {
	_, err := NewPool(Config{Name: treeName}, 0, nil)
	assert.Error(t, err)

	buf, err := tree.NewBuffer(nil, false)
	require.NoError(t, err)
	_, err = NewPool(Config{Name: treeName, Buffer: buf}, 2, nil)
	assert.Error(t, err)
}
