// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rootio_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"
	"go.uber.org/goleak"

	"github.com/ManuGH/emtf-tree/internal/chain"
	"github.com/ManuGH/emtf-tree/internal/rootio"
	"github.com/ManuGH/emtf-tree/internal/tree"
)

// track is one entry of a small EMTF-like ntuple: event scalars, a
// counted hit array, a fixed array and per-track vectors.
type track struct {
	run  int32
	pt   float32
	hits []float32
	arr  [2]float64
	vtPt []float32
	vtQ  []int16
}

var (
	fileA = []track{
		{run: 1, pt: 10.5, hits: []float32{1, 2}, arr: [2]float64{1, 1}, vtPt: []float32{20, 5}, vtQ: []int16{1, -1}},
		{run: 1, pt: 3, hits: []float32{}, arr: [2]float64{2, 2}, vtPt: []float32{}, vtQ: []int16{}},
		{run: 2, pt: 42, hits: []float32{7, 8, 9}, arr: [2]float64{3, 3}, vtPt: []float32{30, 12, 40}, vtQ: []int16{-1, 1, 1}},
	}
	fileB = []track{
		{run: 3, pt: 7, hits: []float32{4}, arr: [2]float64{4, 4}, vtPt: []float32{50}, vtQ: []int16{1}},
	}
)

func writeTracks(t *testing.T, name string, rows []track) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	f, err := groot.Create(p)
	require.NoError(t, err)

	var (
		row        track
		nhit, size int32
	)
	w, err := rtree.NewWriter(f, "tree", []rtree.WriteVar{
		{Name: "evt_run", Value: &row.run},
		{Name: "evt_pt", Value: &row.pt},
		{Name: "nhit", Value: &nhit},
		{Name: "hits", Value: &row.hits, Count: "nhit"},
		{Name: "arr", Value: &row.arr},
		{Name: "vt_size", Value: &size},
		{Name: "vt_pt", Value: &row.vtPt},
		{Name: "vt_q", Value: &row.vtQ},
	})
	require.NoError(t, err)
	for _, r := range rows {
		row = r
		nhit, size = int32(len(r.hits)), int32(len(r.vtPt))
		_, err := w.Write()
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return p
}

func openTree(t *testing.T, path string) tree.Source {
	t.Helper()
	f, err := rootio.Open(context.Background(), path, "r")
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	src, err := f.Tree("tree")
	require.NoError(t, err)
	return src
}

// copyValue detaches slices from the buffer storage reused per entry.
func copyValue(v any) any {
	switch x := v.(type) {
	case []float32:
		return append([]float32{}, x...)
	case []float64:
		return append([]float64{}, x...)
	case []int16:
		return append([]int16{}, x...)
	}
	return v
}

func TestSource_BranchTypes(t *testing.T) {
	src := openTree(t, writeTracks(t, "a.root", fileA))

	got := map[string]tree.BranchInfo{}
	for _, b := range src.Branches() {
		got[b.Name] = b
	}
	want := map[string]tree.BranchInfo{
		"evt_run": {Name: "evt_run", Type: "Int_t", Leaves: 1},
		"evt_pt":  {Name: "evt_pt", Type: "Float_t", Leaves: 1},
		"nhit":    {Name: "nhit", Type: "Int_t", Leaves: 1},
		"hits":    {Name: "hits", Type: "Float_t[]", Leaves: 1, Count: "nhit"},
		"arr":     {Name: "arr", Type: "Double_t[2]", Leaves: 1},
		"vt_size": {Name: "vt_size", Type: "Int_t", Leaves: 1},
		"vt_pt":   {Name: "vt_pt", Type: "vector<float>", Leaves: 1},
		"vt_q":    {Name: "vt_q", Type: "vector<short>", Leaves: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("branches mismatch (-want +got):\n%s", diff)
	}
}

func TestSource_ReadsEveryBranchKind(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	path := writeTracks(t, "a.root", fileA)

	kinds := []struct {
		branch string
		want   func(track) any
	}{
		{"evt_pt", func(r track) any { return r.pt }},
		{"arr", func(r track) any { return r.arr[:] }},
		{"hits", func(r track) any { return r.hits }},
		{"vt_pt", func(r track) any { return r.vtPt }},
		{"vt_q", func(r track) any { return r.vtQ }},
	}
	for _, onDemand := range []bool{false, true} {
		for _, k := range kinds {
			name := k.branch + "/eager"
			if onDemand {
				name = k.branch + "/on_demand"
			}
			t.Run(name, func(t *testing.T) {
				tr := tree.New(openTree(t, path), tree.WithReadOnDemand(onDemand))
				tr.Activate([]string{k.branch}, true)
				require.NoError(t, tr.CreateBuffer(false))

				var got []any
				require.NoError(t, tr.ForEach(context.Background(), func(buf *tree.Buffer) error {
					v, err := buf.Value(k.branch)
					if err != nil {
						return err
					}
					got = append(got, copyValue(v))
					return nil
				}))

				want := make([]any, len(fileA))
				for i, r := range fileA {
					want[i] = k.want(r)
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("%s mismatch (-want +got):\n%s", k.branch, diff)
				}
			})
		}
	}
}

func TestSource_CollectionOverVectors(t *testing.T) {
	for _, onDemand := range []bool{false, true} {
		tr := tree.New(openTree(t, writeTracks(t, "a.root", fileA)), tree.WithReadOnDemand(onDemand))
		require.NoError(t, tr.CreateBuffer(false))
		tracks := tr.Buffer().DefineCollection("tracks", "vt_", "vt_size")

		var sizes []int
		var charges []int64
		require.NoError(t, tr.ForEach(context.Background(), func(*tree.Buffer) error {
			n, err := tracks.Len()
			if err != nil {
				return err
			}
			sizes = append(sizes, n)
			objs, err := tracks.All()
			if err != nil {
				return err
			}
			for _, o := range objs {
				q, err := o.Int64("q")
				if err != nil {
					return err
				}
				charges = append(charges, q)
			}
			return nil
		}))
		assert.Equal(t, []int{2, 0, 3}, sizes, "on demand: %v", onDemand)
		assert.Equal(t, []int64{1, -1, -1, 1, 1}, charges, "on demand: %v", onDemand)
	}
}

func TestChain_TwoGrootFiles(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	files := []string{writeTracks(t, "a.root", fileA), writeTracks(t, "b.root", fileB)}

	for _, onDemand := range []bool{false, true} {
		cfg := chain.Config{
			Name:         "tree",
			ReadOnDemand: onDemand,
			OnFileChange: []chain.Hook{func(_ context.Context, fc chain.FileChange) error {
				fc.Tree.Buffer().DefineCollection("tracks", "vt_", "vt_size")
				return nil
			}},
		}
		c, err := chain.NewTreeChain(context.Background(), cfg, files)
		require.NoError(t, err)

		var runs []int64
		var fast, charge int64
		err = c.ForEach(context.Background(), func(buf *tree.Buffer) error {
			run, err := buf.Int64("evt_run")
			if err != nil {
				return err
			}
			runs = append(runs, run)
			tracks, _ := buf.Collection("tracks")
			return tracks.Select(func(o *tree.CollectionObject) (bool, error) {
				pt, err := o.Float64("pt")
				if err != nil || pt <= 15 {
					return false, err
				}
				q, err := o.Int64("q")
				fast++
				charge += q
				return true, err
			})
		})
		require.NoError(t, err)
		require.NoError(t, c.Close())

		assert.Equal(t, []int64{1, 1, 2, 3}, runs, "on demand: %v", onDemand)
		assert.Equal(t, int64(4), fast, "on demand: %v", onDemand)
		assert.Equal(t, int64(2), charge, "on demand: %v", onDemand)
		assert.Equal(t, int64(4), c.TotalEvents())
		assert.Equal(t, files, c.Files())
	}
}
