package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"quickplan/internal/buildconfig"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the resolved configuration every time the file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := buildconfig.NewProvider(opts.configPath, opts.loader(), buildconfig.WithDebounce(debounce))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if err := enc.Encode(provider.Current()); err != nil {
				return err
			}

			updates := make(chan *buildconfig.BuildConfiguration, 1)
			provider.Subscribe(updates)

			ctx := cmd.Context()
			errCh := make(chan error, 1)
			go func() { errCh <- provider.Watch(ctx) }()

			for {
				select {
				case cfg := <-updates:
					if err := enc.Encode(cfg); err != nil {
						return err
					}
				case err := <-errCh:
					return err
				}
			}
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "delay before reloading after a change")
	return cmd
}
