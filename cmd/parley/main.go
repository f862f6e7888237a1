// Package main provides the parley chat bot binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/parley/internal/config"
	"github.com/cory-johannsen/parley/internal/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "parley",
		Short:        "Chat bot with private dialog, shared room mode, games and tools",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("config", "configs/dev.yaml", "path to configuration file (empty = defaults and environment only)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newAdminCmd())
	return cmd
}

// loadConfig reads the --config file and builds the logger from it.
func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, logger, nil
}
