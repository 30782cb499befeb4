package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"quickplan/internal/buildconfig"
	xerrors "quickplan/internal/errors"
	"quickplan/pkg/logger"
)

const configEnv = "QUICKPLAN_BUILD_CONFIG"

type rootOptions struct {
	configPath string
	strict     bool
	logLevel   string
}

func defaultConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return filepath.Join("www", "build.yaml")
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "quickplan-build",
		Short:         "Resolve and check the CSS build configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return logger.Init(logger.Config{
				Level:  opts.logLevel,
				Format: "text",
				// 日志写到 stderr，stdout 留给解析结果。
				OutputPaths: []string{"stderr"},
			})
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "build configuration file (env "+configEnv+")")
	cmd.PersistentFlags().BoolVar(&opts.strict, "strict", false, "treat empty content and unresolvable globs as errors")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newResolveCmd(opts), newCheckCmd(opts), newWatchCmd(opts))
	return cmd
}

func (o *rootOptions) loader() *buildconfig.Loader {
	return buildconfig.NewLoader(
		buildconfig.WithStrictContent(o.strict),
		buildconfig.WithLogger(logger.Named("buildconfig")),
	)
}

// exitCode 为格式错误返回 2，其余错误返回 1。
func exitCode(err error) int {
	if xerrors.IsFatal(err) {
		return 2
	}
	return 1
}
