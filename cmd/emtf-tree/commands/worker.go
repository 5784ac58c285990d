// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package commands

import (
	"github.com/spf13/cobra"

	"github.com/ManuGH/emtf-tree/internal/config"
	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/scan"
)

func workerCmd(opts *rootOptions) *cobra.Command {
	var (
		flags     jobFlags
		redisAddr string
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a job over files taken from the Redis queue",
		Long: "worker reads file names from the Redis queue until it takes the\n" +
			"end marker pushed by 'queue close', then writes its report.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := opts.loadJob(func(job *config.Job) {
				flags.apply(cmd, job)
				if cmd.Flags().Changed("redis") {
					job.Redis.Addr = redisAddr
				}
			})
			if err != nil {
				return err
			}
			return runWorker(cmd, job)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address (overrides the job)")
	return cmd
}

func runWorker(cmd *cobra.Command, job config.Job) error {
	q, err := connectQueue(cmd.Context(), job)
	if err != nil {
		return err
	}
	defer func() {
		if err := q.Disconnect(); err != nil {
			logger := xglog.WithComponent("cli")
			logger.Warn().Err(err).Msg("redis disconnect failed")
		}
	}()
	return runJob(cmd, job, scan.Deps{Feed: q.Feed(cmd.Context())})
}
