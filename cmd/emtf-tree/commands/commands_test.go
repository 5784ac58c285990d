// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/emtf-tree/internal/config"
	"github.com/ManuGH/emtf-tree/internal/history"
	"github.com/ManuGH/emtf-tree/internal/report"
	"github.com/ManuGH/emtf-tree/internal/scan"
	"github.com/ManuGH/emtf-tree/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeJob(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
}

func TestValidate(t *testing.T) {
	good := writeJob(t, "tree: ntupler/tree\nfiles: [a.root]\n")
	out, err := execute(t, "validate", "-f", good)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	_, err = execute(t, "validate", "-f", writeJob(t, "files: [a.root]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tree")

	_, err = execute(t, "validate", "-f", writeJob(t, "tree: t\nbogus: 1\n"))
	require.Error(t, err)

	_, err = execute(t, "validate")
	require.Error(t, err)
}

func TestScan_RequiresTree(t *testing.T) {
	_, err := execute(t, "scan", "a.root")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tree")
}

func TestWatch_RequiresDir(t *testing.T) {
	_, err := execute(t, "watch", "--tree", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestQueue(t *testing.T) {
	mr := miniredis.RunT(t)

	out, err := execute(t, "queue", "--redis", mr.Addr(), "push", "--glob=false", "a.root", "b.root")
	require.NoError(t, err)
	assert.Contains(t, out, "queued 2 files")

	out, err = execute(t, "queue", "--redis", mr.Addr(), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "2 pending")

	_, err = execute(t, "queue", "--redis", mr.Addr(), "close", "--consumers", "3")
	require.NoError(t, err)
	out, err = execute(t, "queue", "--redis", mr.Addr(), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "5 pending")

	out, err = execute(t, "queue", "--redis", mr.Addr(), "status", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "0 pending")
}

func TestQueue_NoAddress(t *testing.T) {
	_, err := execute(t, "queue", "status")
	require.Error(t, err)
}

func TestHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(db)
	require.NoError(t, err)
	rep := report.New("muons", "ntupler/tree")
	rep.Files = []string{"a.root"}
	rep.Entries, rep.Passed = 1200, 34
	rep.Finish(nil)
	require.NoError(t, store.Record(context.Background(), rep))
	require.NoError(t, store.Close())

	out, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, rep.RunID)
	assert.Contains(t, out, "1,200")

	out, err = execute(t, "history", "--db", db, rep.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "ntupler/tree")

	_, err = execute(t, "history", "--db", db, "missing")
	require.ErrorIs(t, err, history.ErrNotFound)

	out, err = execute(t, "history", "--db", db, "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
}

func TestScan_NoInput(t *testing.T) {
	_, err := execute(t, "scan", "--tree", "t")
	require.ErrorIs(t, err, scan.ErrNoInput)
}

func TestFlags_DoNotLeakBetweenRuns(t *testing.T) {
	mr := miniredis.RunT(t)
	_, err := execute(t, "queue", "--redis", mr.Addr(), "status")
	require.NoError(t, err)
	_, err = execute(t, "queue", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Redis address")

	good := writeJob(t, "tree: ntupler/tree\nfiles: [a.root]\n")
	_, err = execute(t, "--config", good, "validate")
	require.NoError(t, err)
	_, err = execute(t, "validate")
	require.Error(t, err)
}

func TestJobFlags_Apply(t *testing.T) {
	var flags jobFlags
	cmd := &cobra.Command{Use: "scan"}
	flags.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--tree", "ntupler/tree", "--listen", "127.0.0.1:9090", "-n", "50"}))

	job := config.Defaults()
	job.Workers = 6
	flags.apply(cmd, &job)
	assert.Equal(t, "ntupler/tree", job.Tree)
	assert.Equal(t, "127.0.0.1:9090", job.Server.Listen)
	assert.Equal(t, int64(50), job.Events)
	assert.Equal(t, 6, job.Workers, "unset flags keep the job value")
}
