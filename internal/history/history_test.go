// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/emtf-tree/internal/filter"
	"github.com/ManuGH/emtf-tree/internal/report"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func run(job string, started time.Time) *report.Report {
	r := report.New(job, "ntupler/tree")
	r.Started = started
	r.Files = []string{"a.root"}
	r.Entries, r.Passed = 10, 4
	r.CutFlow = []filter.Stage{{Name: "cut", Total: 10, Passing: 4}}
	r.Finished = started.Add(time.Second)
	return r
}

func TestStore_RecordGetList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := run("first", base)
	second := run("second", base.Add(time.Hour))
	second.Error = "boom"
	require.NoError(t, s.Record(ctx, first))
	require.NoError(t, s.Record(ctx, second))

	got, err := s.Get(ctx, first.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Job)
	assert.Equal(t, "boom", list[0].Error)
	assert.Equal(t, base, list[1].Started)
	assert.Equal(t, 1, list[1].Files)
	assert.Equal(t, int64(4), list[1].Passed)

	list, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_RecordReplaces(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	r := run("job", time.Now().UTC())
	require.NoError(t, s.Record(ctx, r))
	r.Passed = 9
	require.NoError(t, s.Record(ctx, r))

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(9), list[0].Passed)
}

func TestStore_GetUnknown(t *testing.T) {
	_, err := openStore(t).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), run("job", time.Now().UTC())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	list, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
