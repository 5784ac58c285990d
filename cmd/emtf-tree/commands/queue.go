// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ManuGH/emtf-tree/internal/config"
	"github.com/ManuGH/emtf-tree/internal/queue"
	"github.com/ManuGH/emtf-tree/internal/scan"
)

// queueOptions are the flags shared by the queue subcommands.
type queueOptions struct {
	*rootOptions
	redisAddr string
}

func queueCmd(root *rootOptions) *cobra.Command {
	opts := &queueOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the Redis work queue",
	}
	cmd.PersistentFlags().StringVar(&opts.redisAddr, "redis", "", "Redis address (overrides the job)")
	cmd.AddCommand(queuePushCmd(opts), queueCloseCmd(opts), queueStatusCmd(opts))
	return cmd
}

// open connects to the queue the job names. Queue commands do not need a
// complete job, so it is not validated.
func (o *queueOptions) open(ctx context.Context) (*queue.Queue, error) {
	job, err := o.resolveJob()
	if err != nil {
		return nil, err
	}
	if o.redisAddr != "" {
		job.Redis.Addr = o.redisAddr
	}
	return connectQueue(ctx, job)
}

func connectQueue(ctx context.Context, job config.Job) (*queue.Queue, error) {
	if job.Redis.Addr == "" {
		return nil, errors.New("no Redis address: set redis.addr or --redis")
	}
	return queue.New(ctx, queue.Config{
		Addr:        job.Redis.Addr,
		Password:    job.Redis.Password,
		DB:          job.Redis.DB,
		Key:         job.Redis.Key,
		PollTimeout: job.Redis.PollTimeout,
	})
}

func queuePushCmd(opts *queueOptions) *cobra.Command {
	var expand bool
	cmd := &cobra.Command{
		Use:   "push FILE...",
		Short: "Add files to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if expand {
				var err error
				if files, err = scan.ExpandFiles(args); err != nil {
					return err
				}
			}
			q, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer q.Disconnect()
			if err := q.Push(cmd.Context(), files...); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "queued %s files on %s\n", humanize.Comma(int64(len(files))), q.Key())
			return err
		},
	}
	cmd.Flags().BoolVar(&expand, "glob", true, "expand glob patterns before queueing")
	return cmd
}

func queueCloseCmd(opts *queueOptions) *cobra.Command {
	var consumers int
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Mark the queue complete for the given number of workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer q.Disconnect()
			return q.Close(cmd.Context(), consumers)
		},
	}
	cmd.Flags().IntVar(&consumers, "consumers", 1, "number of worker processes reading the queue")
	return cmd
}

func queueStatusCmd(opts *queueOptions) *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how many files are waiting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer q.Disconnect()
			if clear {
				if err := q.Clear(cmd.Context()); err != nil {
					return err
				}
			}
			n, err := q.Pending(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s pending\n", q.Key(), humanize.Comma(n))
			return err
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "drop everything queued first")
	return cmd
}
