package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/parley/internal/cache"
	"github.com/cory-johannsen/parley/internal/config"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or purge the persisted cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print entry counts of the persisted cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			c := openCache(cfg.Cache, logger)
			expired := c.Cleanup()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path: %s\n", cfg.Cache.Path)
			fmt.Fprintf(out, "entries: %d/%d (expired removed: %d)\n", c.Len(), cfg.Cache.MaxSize, expired)
			for _, k := range c.Keys() {
				fmt.Fprintln(out, "  "+k)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove every entry from the persisted cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			n := openCache(cfg.Cache, logger).Clear()
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries from %s\n", n, cfg.Cache.Path)
			return nil
		},
	})
	return cmd
}

// openCache opens the shared string cache described by cfg.
func openCache(cfg config.CacheConfig, logger *zap.Logger) *cache.Cache[string] {
	return cache.New[string](cache.Options{
		Path:    cfg.Path,
		TTL:     cfg.TTL,
		MaxSize: cfg.MaxSize,
	}, logger.Named("cache"))
}
