// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ManuGH/emtf-tree/internal/rootio"
)

func inspectCmd() *cobra.Command {
	var treeName string
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "List the trees of a ROOT file with their branches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := rootio.Open(cmd.Context(), args[0], "r")
			if err != nil {
				return err
			}
			defer f.Close()

			v, err := f.Version()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			size := "?"
			if fi, err := os.Stat(f.Path()); err == nil {
				size = humanize.Bytes(uint64(fi.Size())) // #nosec G115 -- sizes are non-negative
			}
			fmt.Fprintf(out, "%s: ROOT %s, %s\n", f.Path(), v, size)

			keys, err := f.Trees()
			if err != nil {
				return err
			}
			if treeName != "" {
				keys = []rootio.TreeKey{{Path: treeName}}
			}
			for _, key := range keys {
				t, err := f.Tree(key.Path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%s (%s entries)\n", key.Path, humanize.Comma(t.Entries()))
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "  BRANCH\tTYPE\tNOTE")
				for _, b := range t.Branches() {
					note := ""
					switch {
					case !b.Supported():
						note = fmt.Sprintf("unsupported (%d leaves)", b.Leaves)
					case b.Count != "":
						note = "size " + b.Count
					}
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", b.Name, b.Type, note)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&treeName, "tree", "t", "", "only show this tree")
	return cmd
}
