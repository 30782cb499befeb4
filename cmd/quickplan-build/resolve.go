package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var absolute bool
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the resolved configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loader().Load(opts.configPath)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg.Export(absolute))
		},
	}
	cmd.Flags().BoolVar(&absolute, "absolute", false, "resolve content globs against the config directory")
	return cmd
}
