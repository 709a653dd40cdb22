package main

import (
	"context"
	"time"

	"flk-api/internal/config"
	"flk-api/internal/database"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// migrate creates the report and item tables for the configured database.
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate()
	if err != nil {
		logrus.Fatalf("Configuration error: %v", err)
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database connection")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, cfg.DBDriver, database.NewTables(cfg.ReportTable, cfg.ItemTable)); err != nil {
		logger.WithError(err).Fatal("Failed to apply schema")
	}

	logger.WithFields(logrus.Fields{
		"driver":  cfg.DBDriver,
		"reports": cfg.ReportTable,
		"items":   cfg.ItemTable,
	}).Info("Schema applied successfully")
}
