// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ManuGH/emtf-tree/internal/history"
	"github.com/ManuGH/emtf-tree/internal/persistence/sqlite"
)

func historyCmd(opts *rootOptions) *cobra.Command {
	var (
		dbPath string
		limit  int
		asJSON bool
		verify bool
		full   bool
	)
	cmd := &cobra.Command{
		Use:   "history [RUN-ID]",
		Short: "List past runs or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				job, err := opts.resolveJob()
				if err != nil {
					return err
				}
				dbPath = job.History.Path
			}
			if dbPath == "" {
				return errors.New("no history database: set history.path or --db")
			}
			out := cmd.OutOrStdout()

			if verify {
				problems, err := sqlite.VerifyIntegrity(dbPath, full)
				if err != nil {
					return err
				}
				if len(problems) > 0 {
					return fmt.Errorf("%s is damaged: %s", dbPath, strings.Join(problems, "; "))
				}
				_, err = fmt.Fprintf(out, "%s: ok\n", dbPath)
				return err
			}

			store, err := history.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				rep, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(rep)
				}
				return rep.WriteText(out)
			}

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tJOB\tTREE\tSTARTED\tDURATION\tFILES\tENTRIES\tPASSED\tSTATUS")
			for _, r := range runs {
				status := "ok"
				if r.Error != "" {
					status = "failed"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					r.RunID, r.Job, r.Tree,
					humanize.Time(r.Started),
					r.Finished.Sub(r.Started).Round(time.Millisecond),
					r.Files,
					humanize.Comma(r.Entries),
					humanize.Comma(r.Passed),
					status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "history database (overrides the job)")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&verify, "verify", false, "check the database integrity instead")
	cmd.Flags().BoolVar(&full, "full", false, "with --verify, run the full integrity check")
	return cmd
}
