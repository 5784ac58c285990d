// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/emtf-tree/internal/config"
	"github.com/ManuGH/emtf-tree/internal/scan"
	"github.com/ManuGH/emtf-tree/internal/watch"
)

func watchCmd(opts *rootOptions) *cobra.Command {
	var (
		flags    jobFlags
		pattern  string
		existing bool
		settle   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Run a job over files as they appear in a directory",
		Long: "watch processes every matching file once it has stopped growing and\n" +
			"keeps going until interrupted. The report covers everything seen.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := opts.loadJob(func(job *config.Job) {
				flags.apply(cmd, job)
				if len(args) == 1 {
					job.Watch.Dir = args[0]
				}
				fs := cmd.Flags()
				if fs.Changed("pattern") {
					job.Watch.Pattern = pattern
				}
				if fs.Changed("existing") {
					job.Watch.Existing = existing
				}
				if fs.Changed("settle") {
					job.Watch.Settle = settle
				}
			})
			if err != nil {
				return err
			}
			return runWatch(cmd, job)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&pattern, "pattern", "", "file name pattern (default *.root)")
	cmd.Flags().BoolVar(&existing, "existing", false, "also process files already in the directory")
	cmd.Flags().DurationVar(&settle, "settle", 0, "quiet time before a file is read")
	return cmd
}

func runWatch(cmd *cobra.Command, job config.Job) error {
	if job.Watch.Dir == "" {
		return errors.New("no directory to watch: pass DIR or set watch.dir")
	}
	feed, err := watch.Watch(cmd.Context(), watch.Config{
		Dir:      job.Watch.Dir,
		Pattern:  job.Watch.Pattern,
		Existing: job.Watch.Existing,
		Settle:   job.Watch.Settle,
	})
	if err != nil {
		return err
	}
	return runJob(cmd, job, scan.Deps{Feed: feed})
}
