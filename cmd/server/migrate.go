package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gmoorevt/socialstyles/internal/db"
)

func migrateCmd(g *globalFlags) *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply every pending migration, or with --down N roll back the
last N applied migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			sqlDB, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			if down > 0 {
				n, err := db.RollbackMigrations(sqlDB, cfg.MigrationsDir, down)
				if err != nil {
					return err
				}
				logger.Info("migrations rolled back", "count", n, "db", cfg.DBPath)
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", n)
				return nil
			}
			n, err := db.RunMigrations(sqlDB, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", "count", n, "db", cfg.DBPath)
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "Roll back this many migrations instead of applying")
	return cmd
}
