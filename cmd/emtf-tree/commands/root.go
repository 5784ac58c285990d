// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/emtf-tree/internal/config"
	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/scan"
	"github.com/ManuGH/emtf-tree/internal/server"
	"github.com/ManuGH/emtf-tree/internal/telemetry"
	"github.com/ManuGH/emtf-tree/internal/version"
)

const shutdownTimeout = 5 * time.Second

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

// Execute runs the CLI until it finishes or receives SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "emtf-tree",
		Short:        "Read, filter and summarise ROOT trees",
		Version:      version.Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "job file (YAML)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides the job)")

	root.AddCommand(
		versionCmd(),
		inspectCmd(),
		validateCmd(opts),
		scanCmd(opts),
		queueCmd(opts),
		workerCmd(opts),
		watchCmd(opts),
		historyCmd(opts),
	)
	return root
}

// resolveJob merges defaults, the job file and the environment without
// validating.
func (o *rootOptions) resolveJob() (config.Job, error) {
	return config.NewLoader(o.configPath).Resolve()
}

// loadJob resolves the job and lets the command apply its flags before
// validation.
func (o *rootOptions) loadJob(override func(*config.Job)) (config.Job, error) {
	job, err := o.resolveJob()
	if err != nil {
		return job, err
	}
	if override != nil {
		override(&job)
	}
	if o.logLevel != "" {
		job.Log.Level = o.logLevel
	}
	return job, config.Validate(job)
}

// setup configures logging and tracing for job. The returned func flushes
// the tracer provider.
func setup(ctx context.Context, job config.Job) (func(), error) {
	cfg := xglog.Config{Level: job.Log.Level, Version: version.Version}
	switch job.Log.Format {
	case "json":
		cfg.Console = new(bool)
	case "console":
		on := true
		cfg.Console = &on
	}
	xglog.Configure(cfg)

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        job.Telemetry.Enabled,
		ServiceName:    "emtf-tree",
		ServiceVersion: version.Version,
		Job:            job.Name,
		ExporterType:   job.Telemetry.Exporter,
		Endpoint:       job.Telemetry.Endpoint,
		SamplingRate:   job.Telemetry.SamplingRate,
	})
	if err != nil {
		return func() {}, err
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger := xglog.WithComponent("cli")
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}, nil
}

// serveStatus starts the status server when an address is configured.
func serveStatus(job config.Job, status *scan.Status) (func(), error) {
	addr := job.Server.Listen
	if addr == "" {
		return func() {}, nil
	}
	srv, err := server.Start(server.Config{Listen: addr, RateLimit: job.Server.RateLimit, Status: status})
	if err != nil {
		return func() {}, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger := xglog.WithComponent("cli")
			logger.Warn().Err(err).Msg("status server shutdown failed")
		}
	}, nil
}

// runJob wraps scan.Run with logging, tracing and the optional status
// server, and prints the text report when asked.
func runJob(cmd *cobra.Command, job config.Job, deps scan.Deps) error {
	ctx := cmd.Context()
	flush, err := setup(ctx, job)
	if err != nil {
		return err
	}
	defer flush()

	if deps.Status == nil {
		deps.Status = &scan.Status{}
	}
	stopServer, err := serveStatus(job, deps.Status)
	if err != nil {
		return err
	}
	defer stopServer()

	rep, err := scan.Run(ctx, job, deps)
	if rep != nil && job.Report.Text {
		if werr := rep.WriteText(cmd.OutOrStdout()); werr != nil {
			err = errors.Join(err, werr)
		}
	}
	if errors.Is(err, context.Canceled) {
		logger := xglog.WithComponent("cli")
		logger.Warn().Msg("interrupted")
	}
	return err
}
