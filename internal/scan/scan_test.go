// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/emtf-tree/internal/chain"
	"github.com/ManuGH/emtf-tree/internal/config"
	"github.com/ManuGH/emtf-tree/internal/filter"
	"github.com/ManuGH/emtf-tree/internal/history"
	"github.com/ManuGH/emtf-tree/internal/report"
	"github.com/ManuGH/emtf-tree/internal/rootio"
	"github.com/ManuGH/emtf-tree/internal/tree"
)

const treeName = "ntupler/tree"

// trackFile has one entry per element of sizes; entry i holds sizes[i]
// tracks with pt 10*(j+1).
func trackFile(t *testing.T, name string, sizes ...int) *rootio.MemFile {
	t.Helper()
	src := tree.NewMemSource(treeName)
	var sizeVals, ptVals, evtPt []any
	for _, n := range sizes {
		pts := make([]float32, n)
		for j := range pts {
			pts[j] = float32(10 * (j + 1))
		}
		sizeVals = append(sizeVals, n)
		ptVals = append(ptVals, pts)
		evtPt = append(evtPt, float64(10*n))
	}
	require.NoError(t, src.AddColumn("evt_pt", "Double_t", evtPt...))
	require.NoError(t, src.AddColumn("vt_size", "Int_t", sizeVals...))
	require.NoError(t, src.AddVariableColumn("vt_pt", "Float_t[]", "vt_size", ptVals...))
	return &rootio.MemFile{Name: name, Objects: map[string]any{treeName: src}}
}

func testJob() config.Job {
	job := config.Defaults()
	job.Name = "tracks"
	job.Tree = treeName
	job.Files = []string{"a.root", "b.root", "missing.root"}
	job.Collections = []config.CollectionConfig{{Name: "tracks", Prefix: "vt_", Size: "vt_size"}}
	job.Objects = []config.ObjectConfig{{Name: "evt", Prefix: "evt_"}}
	job.Cuts = []config.CutConfig{
		{Name: "two_tracks", Collection: "tracks", Op: ">=", Value: 2},
		{Name: "high_pt", Branch: "evt_pt", Op: ">", Value: 25},
	}
	return job
}

func testOpener(t *testing.T) rootio.MemOpener {
	return rootio.MemOpener{
		"a.root": trackFile(t, "a.root", 0, 1, 2, 3),
		"b.root": trackFile(t, "b.root", 4, 2, 1),
	}
}

func TestRun_SingleChain(t *testing.T) {
	dir := t.TempDir()
	job := testJob()
	job.Report.JSON = filepath.Join(dir, "report.json")

	store, err := history.Open(filepath.Join(dir, "history.sqlite"))
	require.NoError(t, err)
	defer store.Close()

	var status Status
	var objects atomic.Int32
	rep, err := Run(context.Background(), job, Deps{
		Opener:  testOpener(t),
		History: store,
		Status:  &status,
		OnEntry: func(_ int, buf *tree.Buffer) error {
			if _, ok := buf.Object("evt"); ok {
				objects.Add(1)
			}
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.root", "b.root"}, rep.Files)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, chain.SkipOpen, rep.Skipped[0].Reason)
	assert.Equal(t, int64(7), rep.Entries)
	assert.Equal(t, int64(2), rep.Passed)
	assert.Equal(t, int32(2), objects.Load())
	want := []filter.Stage{
		{Name: "two_tracks", Total: 7, Passing: 4},
		{Name: "high_pt", Total: 4, Passing: 2},
	}
	if diff := cmp.Diff(want, rep.CutFlow); diff != "" {
		t.Errorf("cut-flow mismatch (-want +got):\n%s", diff)
	}

	snap := status.Snapshot()
	assert.Equal(t, StateDone, snap.State)
	assert.Equal(t, rep.RunID, snap.RunID)
	assert.Equal(t, int64(2), snap.Passed)

	written, err := report.ReadJSON(job.Report.JSON)
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, written.RunID)

	stored, err := store.Get(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, rep.Passed, stored.Passed)
}

func TestRun_Pool(t *testing.T) {
	job := testJob()
	job.Workers = 3
	rep, err := Run(context.Background(), job, Deps{Opener: testOpener(t)})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a.root", "b.root"}, rep.Files)
	assert.Equal(t, int64(7), rep.Entries)
	assert.Equal(t, int64(2), rep.Passed)
	assert.Equal(t, []filter.Stage{
		{Name: "two_tracks", Total: 7, Passing: 4},
		{Name: "high_pt", Total: 4, Passing: 2},
	}, rep.CutFlow)
}

func TestRun_Feed(t *testing.T) {
	job := testJob()
	job.Files = nil
	feed := make(chan string, 1)
	feed <- "b.root"
	close(feed)
	rep, err := Run(context.Background(), job, Deps{Opener: testOpener(t), Feed: feed})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.root"}, rep.Files)
	assert.Equal(t, int64(1), rep.Passed)
}

func TestRun_Failures(t *testing.T) {
	job := testJob()
	job.Files = nil
	var status Status
	rep, err := Run(context.Background(), job, Deps{Opener: testOpener(t), Status: &status})
	assert.ErrorIs(t, err, ErrNoInput)
	assert.False(t, rep.Success())
	assert.Equal(t, StateFailed, status.Snapshot().State)

	job = testJob()
	boom := errors.New("boom")
	rep, err = Run(context.Background(), job, Deps{
		Opener:  testOpener(t),
		OnEntry: func(int, *tree.Buffer) error { return boom },
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, rep.Error, "boom")
}

func TestExpandFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.root", "a.root", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	got, err := ExpandFiles([]string{
		filepath.Join(dir, "*.root"),
		filepath.Join(dir, "a.root"),
		"root://eos/remote.root",
		filepath.Join(dir, "*.none"),
	})
	require.NoError(t, err)
	want := []string{filepath.Join(dir, "a.root"), filepath.Join(dir, "b.root"), "root://eos/remote.root"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}

	_, err = ExpandFiles([]string{"["})
	assert.Error(t, err)
}

func TestBuildFilters(t *testing.T) {
	list, err := BuildFilters(testJob().Cuts)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Len())

	_, err = BuildFilters([]config.CutConfig{{Name: "bad", Branch: "x", Op: "=~"}})
	assert.ErrorIs(t, err, filter.ErrUnknownOp)
}

func TestStatus_NilIsIdle(t *testing.T) {
	var s *Status
	assert.Equal(t, StateIdle, s.Snapshot().State)
	s.passed()
}
