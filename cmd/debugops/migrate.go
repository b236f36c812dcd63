package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/debugops/debugops/internal/config"
	"github.com/debugops/debugops/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long:  "Runs the schema migrations against DATABASE_URL. Has no effect with the in-memory store.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cleanup := initLogging()
		defer cleanup()

		if cfg.StoreKind() == config.StoreMemory {
			zap.S().Info("DATABASE_URL selects the in-memory store; nothing to migrate")
			return nil
		}

		db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		zap.S().Infof("Migrated %s schema", cfg.StoreKind())
		return nil
	},
}
