// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/emtf-tree/internal/config"
)

func validateCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a job file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = opts.configPath
			}
			if file == "" {
				return errors.New("--file is required")
			}
			if _, err := config.NewLoader(file).Load(); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", file)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "job file (YAML)")
	return cmd
}
