package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janhq/evaluator-server/internal/infrastructure/database"
	_ "github.com/janhq/evaluator-server/internal/infrastructure/database/dbschema"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database commands",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long:  `AutoMigrate every registered table into DB_POSTGRESQL_DSN, creating the DB_TABLE_PREFIX schema first.`,
	RunE:  runDBMigrate,
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Connect(database.Config{
		DatabaseURL: cfg.DatabaseURL,
		TablePrefix: cfg.DBTablePrefix,
		MaxIdle:     1,
		MaxOpen:     1,
		MaxLifetime: cfg.DBMaxLifetime,
		LogLevel:    database.ParseLogLevel(cfg.DBQueryLogLevel),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := database.Migration(db, cfg.DBTablePrefix); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(database.SchemaRegistry))
	return nil
}
