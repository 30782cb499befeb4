package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report how many files each content glob matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := opts.loader()
			cfg, err := loader.Load(opts.configPath)
			if err != nil {
				return err
			}
			report, err := loader.Check(cmd.Context(), cfg)
			out := cmd.OutOrStdout()
			if report != nil {
				for _, g := range report.Globs {
					fmt.Fprintf(out, "%6d  %s\n", g.Matches, g.Glob)
				}
				for _, w := range report.Warnings {
					fmt.Fprintf(out, "warning: %v\n", w)
				}
			}
			return err
		},
	}
}
