// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tree

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// muonSource is a five entry tree with a scalar, a string, a fixed array
// and a variable-length muon collection.
func muonSource(t *testing.T) *MemSource {
	t.Helper()
	src := NewMemSource("ntupler/tree")
	require.NoError(t, src.AddColumn("evt_run", "Int_t", 1, 1, 1, 2, 2))
	require.NoError(t, src.AddColumn("evt_event", "ULong64_t", 10, 11, 12, 13, 14))
	require.NoError(t, src.AddColumn("evt_weight", "Double_t", 0.5, 1.0, 1.5, 2.0, 2.5))
	require.NoError(t, src.AddColumn("trig_bits", "Bool_t[2]",
		[]bool{true, false}, []bool{false, false}, []bool{true, true}, []bool{false, true}, []bool{true, false}))
	require.NoError(t, src.AddColumn("vt_size", "Int_t", 2, 0, 3, 1, 2))
	require.NoError(t, src.AddVariableColumn("vt_pt", "Float_t[]", "vt_size",
		[]float32{20, 5}, []float32{}, []float32{3, 40, 12}, []float32{7}, []float32{9, 9}))
	require.NoError(t, src.AddVariableColumn("vt_q", "Short_t[]", "vt_size",
		[]int16{1, -1}, []int16{}, []int16{-1, 1, 1}, []int16{1}, []int16{-1, 1}))
	return src
}

func TestMemSource_RejectsRaggedColumns(t *testing.T) {
	src := NewMemSource("t")
	require.NoError(t, src.AddColumn("a", "Int_t", 1, 2))
	assert.Error(t, src.AddColumn("b", "Int_t", 1))
	assert.ErrorIs(t, src.AddColumn("a", "Int_t", 1, 2), ErrDuplicateBranch)
}

func TestTree_BranchMetadata(t *testing.T) {
	tr := New(muonSource(t))
	assert.Equal(t, "ntupler/tree", tr.Name())
	assert.Equal(t, int64(5), tr.Entries())
	assert.True(t, tr.HasBranch("vt_pt"))
	assert.False(t, tr.HasBranch("vt_eta"))

	typ, err := tr.BranchType("trig_bits")
	require.NoError(t, err)
	assert.Equal(t, "Bool_t[2]", typ)

	_, err = tr.BranchType("nope")
	assert.ErrorIs(t, err, ErrNoSuchBranch)

	assert.True(t, tr.BranchSupported("vt_pt"))
	assert.False(t, tr.BranchSupported("nope"))
}

func TestTree_Glob(t *testing.T) {
	tr := New(muonSource(t))
	got := tr.Glob([]string{"evt_*", "vt_pt"}, []string{"*_weight"})
	want := []string{"evt_run", "evt_event", "vt_pt"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Glob mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, tr.Glob([]string{"mu_*"}, nil))
}

func TestTree_ActivateDeactivate(t *testing.T) {
	tr := New(muonSource(t))

	tr.Activate([]string{"vt_*", "missing"}, true)
	assert.True(t, tr.IsActive("vt_pt"))
	assert.True(t, tr.IsActive("vt_size"))
	assert.False(t, tr.IsActive("evt_run"))

	tr.Deactivate([]string{"vt_q"}, false)
	assert.False(t, tr.IsActive("vt_q"))
	assert.True(t, tr.IsActive("vt_pt"))

	tr.Deactivate([]string{"evt_*"}, true)
	assert.False(t, tr.IsActive("evt_run"))
	assert.True(t, tr.IsActive("vt_q"))
}

func TestTree_CreateBufferOnlyActive(t *testing.T) {
	tr := New(muonSource(t))
	tr.Deactivate([]string{"vt_*"}, false)
	require.NoError(t, tr.CreateBuffer(false))
	assert.Equal(t, []string{"evt_run", "evt_event", "evt_weight", "trig_bits"}, tr.Buffer().Keys())
}

func TestTree_CreateBufferUnsupported(t *testing.T) {
	src := muonSource(t)
	src.AddBranch(BranchInfo{Name: "hits", Type: "EMTFHit", Leaves: 3})

	tr := New(src)
	err := tr.CreateBuffer(false)
	require.ErrorIs(t, err, ErrUnsupportedBranch)

	require.NoError(t, tr.CreateBuffer(true))
	assert.False(t, tr.Buffer().Has("hits"))
	assert.True(t, tr.Buffer().Has("vt_pt"))
}

func TestTree_ForEachEager(t *testing.T) {
	tr := New(muonSource(t))
	var (
		entries []int64
		events  []int64
		sizes   []int
	)
	err := tr.ForEach(context.Background(), func(buf *Buffer) error {
		entries = append(entries, buf.Entry())
		ev, err := buf.Int64("evt_event")
		require.NoError(t, err)
		events = append(events, ev)
		n, err := buf.ArrayLen("vt_pt")
		require.NoError(t, err)
		sizes = append(sizes, n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, entries)
	assert.Equal(t, []int64{10, 11, 12, 13, 14}, events)
	assert.Equal(t, []int{2, 0, 3, 1, 2}, sizes)
}

func TestTree_ForEachSkipsInactiveBranches(t *testing.T) {
	src := muonSource(t)
	tr := New(src)
	require.NoError(t, tr.CreateBuffer(false))
	tr.Deactivate([]string{"vt_q"}, false)

	require.NoError(t, tr.ForEach(context.Background(), func(*Buffer) error { return nil }))
	assert.Equal(t, int64(5), src.Reads("vt_pt"))
	assert.Zero(t, src.Reads("vt_q"))
}

func TestTree_ForEachStop(t *testing.T) {
	tr := New(muonSource(t))
	var seen int
	err := tr.ForEach(context.Background(), func(buf *Buffer) error {
		seen++
		if buf.Entry() == 2 {
			return ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

func TestTree_ForEachPropagatesErrors(t *testing.T) {
	tr := New(muonSource(t))
	boom := errors.New("boom")
	err := tr.ForEach(context.Background(), func(*Buffer) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestTree_ForEachCancelled(t *testing.T) {
	tr := New(muonSource(t))
	ctx, cancel := context.WithCancel(context.Background())
	var seen int
	err := tr.ForEach(ctx, func(*Buffer) error {
		seen++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, seen)
}

func TestTree_ForEachOnDemand(t *testing.T) {
	src := muonSource(t)
	tr := New(src, WithReadOnDemand(true), WithAlwaysRead("evt_run"))
	require.NoError(t, tr.CreateBuffer(false))

	var pts [][]float32
	err := tr.ForEach(context.Background(), func(buf *Buffer) error {
		run, err := buf.Int64("evt_run")
		if err != nil {
			return err
		}
		if run != 2 {
			return nil
		}
		v, err := buf.Value("vt_pt")
		if err != nil {
			return err
		}
		pts = append(pts, append([]float32(nil), v.([]float32)...))
		// A second access within the entry does not read again.
		_, err = buf.Value("vt_pt")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{7}, {9, 9}}, pts)

	assert.Equal(t, int64(5), src.Reads("evt_run"))
	assert.Equal(t, int64(2), src.Reads("vt_pt"))
	assert.Zero(t, src.Reads("vt_q"))
	assert.Zero(t, src.Reads("evt_event"))
}

func TestTree_OnDemandMissingAlwaysRead(t *testing.T) {
	tr := New(muonSource(t), WithReadOnDemand(true), WithAlwaysRead("nope"))
	require.NoError(t, tr.CreateBuffer(false))
	err := tr.ForEach(context.Background(), func(*Buffer) error { return nil })
	assert.ErrorIs(t, err, ErrNoSuchBranch)
}

func TestTree_SetBuffer(t *testing.T) {
	buf, err := NewBuffer([]Branch{{"evt_run", "Int_t"}, {"extra", "Float_t"}}, false)
	require.NoError(t, err)

	tr := New(muonSource(t))
	err = tr.SetBuffer(buf, SetBufferOptions{})
	assert.ErrorIs(t, err, ErrNoSuchBranch)

	require.NoError(t, tr.SetBuffer(buf, SetBufferOptions{IgnoreMissing: true}))
	assert.ElementsMatch(t, []string{"evt_run", "extra"}, tr.Buffer().Keys())

	var runs []int64
	require.NoError(t, tr.ForEach(context.Background(), func(b *Buffer) error {
		run, err := b.Int64("evt_run")
		runs = append(runs, run)
		return err
	}))
	assert.Equal(t, []int64{1, 1, 1, 2, 2}, runs)
}

func TestTree_SetBufferSubsetAndTransfer(t *testing.T) {
	buf, err := NewBuffer([]Branch{{"vt_size", "Int_t"}, {"vt_pt", "Float_t[]"}, {"extra", "Float_t"}}, false)
	require.NoError(t, err)
	buf.DefineCollection("tracks", "vt_", "vt_size")
	buf.DefineObject("evt", "evt_")

	tr := New(muonSource(t))
	require.NoError(t, tr.SetBuffer(buf, SetBufferOptions{
		IgnoreBranches:  []string{"extra"},
		TransferObjects: true,
	}))
	_, ok := tr.Buffer().Collection("tracks")
	assert.True(t, ok)
	_, ok = tr.Buffer().Object("evt")
	assert.True(t, ok)
}
