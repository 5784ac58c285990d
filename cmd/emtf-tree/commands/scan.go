// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package commands

import (
	"github.com/spf13/cobra"

	"github.com/ManuGH/emtf-tree/internal/config"
	"github.com/ManuGH/emtf-tree/internal/scan"
)

// jobFlags are the job settings every running command can override.
type jobFlags struct {
	tree           string
	events         int64
	workers        int
	branches       []string
	ignoreBranches []string
	reportJSON     string
	text           bool
	indexDir       string
	historyPath    string
	listen         string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.tree, "tree", "t", "", "tree name")
	fs.Int64VarP(&f.events, "events", "n", 0, "stop after this many passing entries")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel workers")
	fs.StringSliceVarP(&f.branches, "branch", "b", nil, "read only branches matching these patterns")
	fs.StringSliceVar(&f.ignoreBranches, "ignore-branch", nil, "skip branches matching these patterns")
	fs.StringVar(&f.reportJSON, "report", "", "write the JSON report here")
	fs.BoolVar(&f.text, "text", false, "print the report")
	fs.StringVar(&f.indexDir, "index", "", "metadata index directory")
	fs.StringVar(&f.historyPath, "history", "", "run history database")
	fs.StringVar(&f.listen, "listen", "", "serve /healthz, /metrics and /status on this address")
}

func (f *jobFlags) apply(cmd *cobra.Command, job *config.Job) {
	fs := cmd.Flags()
	if fs.Changed("tree") {
		job.Tree = f.tree
	}
	if fs.Changed("events") {
		job.Events = f.events
	}
	if fs.Changed("workers") {
		job.Workers = f.workers
	}
	if fs.Changed("branch") {
		job.Branches = f.branches
	}
	if fs.Changed("ignore-branch") {
		job.IgnoreBranches = f.ignoreBranches
	}
	if fs.Changed("report") {
		job.Report.JSON = f.reportJSON
	}
	if fs.Changed("text") {
		job.Report.Text = f.text
	}
	if fs.Changed("index") {
		job.Index.Dir = f.indexDir
	}
	if fs.Changed("history") {
		job.History.Path = f.historyPath
	}
	if fs.Changed("listen") {
		job.Server.Listen = f.listen
	}
}

func scanCmd(opts *rootOptions) *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "scan [FILE...]",
		Short: "Run a job over a list of files",
		Long: "scan reads the files given as arguments, or the input the job names:\n" +
			"its file list, a watched directory or the Redis queue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := opts.loadJob(func(job *config.Job) {
				flags.apply(cmd, job)
				if len(args) > 0 {
					job.Files = args
				}
			})
			if err != nil {
				return err
			}
			switch job.Source() {
			case "watch":
				return runWatch(cmd, job)
			case "redis":
				return runWorker(cmd, job)
			case "":
				return scan.ErrNoInput
			}
			return runJob(cmd, job, scan.Deps{})
		},
	}
	flags.register(cmd)
	return cmd
}
