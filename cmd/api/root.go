package main

import (
	"log/slog"
	"os"

	"todoapi/internal/app"
	"todoapi/internal/config"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "todo-api",
		Short:         "Todo API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Version = version
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML or TOML config file (default: environment only)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

// load reads the config and builds the process logger. The --log-level
// flag wins over the configured level.
func (o *rootOptions) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	raw := cfg.Log.Level
	if o.logLevel != "" {
		raw = o.logLevel
	}
	level, err := app.ParseLogLevel(raw)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := app.NewLogger(os.Stderr, level, cfg.App.Env)
	slog.SetDefault(log)
	return cfg, log, nil
}
