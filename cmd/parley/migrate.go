package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/parley/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	var (
		source string
		steps  int
	)
	cmd := &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{postgres.DirectionUp, postgres.DirectionDown},
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			res, err := postgres.Migrate(source, cfg.Database.DSN(), args[0], steps)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.NoChange {
				fmt.Fprintf(out, "no changes (version=%d dirty=%v) [%s]\n", res.Version, res.Dirty, time.Since(start))
				return nil
			}
			fmt.Fprintf(out, "migrated %s to version=%d dirty=%v [%s]\n", args[0], res.Version, res.Dirty, time.Since(start))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "file://migrations", "migration source URL")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}
