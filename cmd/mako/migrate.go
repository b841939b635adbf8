package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"makosite/internal/config"
	"makosite/internal/db"
)

var (
	flagMigrateDown bool
	flagSeedFile    string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply all pending migrations to DATABASE_URL.

With --seed, links from the given YAML file are inserted when the links
table is empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()

		if flagMigrateDown {
			if err := database.RollbackMigrations(cfg.DatabaseURL); err != nil {
				return err
			}
			logger.Info("rolled back one migration")
			return nil
		}

		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
		logger.Info("migrations completed")

		if flagSeedFile == "" {
			return nil
		}
		seed, err := config.LoadYAMLConfigFile(flagSeedFile)
		if err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
		if seed == nil {
			logger.Warn("seed file not found", zap.String("path", flagSeedFile))
			return nil
		}
		n, err := database.SeedLinks(ctx, seed.SeedLinks())
		if err != nil {
			return err
		}
		logger.Info("links seeded", zap.Int("count", n))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&flagMigrateDown, "down", false, "roll back the most recent migration")
	migrateCmd.Flags().StringVar(&flagSeedFile, "seed", "", "YAML file with links to seed into an empty table")
}
