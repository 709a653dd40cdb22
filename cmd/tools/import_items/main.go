package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"flk-api/internal/config"
	"flk-api/pkg/importer"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	var (
		filePath    = flag.String("file", "", "Path to the .xlsx workbook")
		mappingPath = flag.String("mapping", "", "YAML header mapping (default: embedded)")
		noSeri      = flag.String("no-seri", "", "Serial number for rows without one")
		dryRun      = flag.Bool("dry-run", false, "Parse and report without inserting")
		maxErrors   = flag.Int("max-errors", 50, "Error samples to print")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	if *filePath == "" {
		fmt.Println("Usage: import_items --file=items.xlsx [--mapping=map.yaml] [--no-seri=SN] [--dry-run]")
		os.Exit(1)
	}

	mapping, err := importer.LoadMapping(*mappingPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load mapping")
	}

	file, err := os.Open(*filePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open Excel file")
	}
	defer file.Close()

	items, summary, err := importer.ParseItems(file, mapping, importer.ParseOptions{
		DefaultNoSeri: *noSeri,
		MaxErrors:     *maxErrors,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse workbook")
	}
	summary.DryRun = *dryRun

	if summary.Errors == 0 && !*dryRun && len(items) > 0 {
		dsn := cfg.DBDSN
		if dsn == "" || cfg.DBDriver == "sqlite" {
			logger.Fatal("import_items needs a Postgres DB_DSN")
		}
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer pool.Close()

		n, err := importer.Store(ctx, pool, cfg.ItemTable, items)
		if err != nil {
			logger.WithError(err).Fatal("Import failed")
		}
		summary.Inserted = n
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("IMPORT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Sheet: %s\n", summary.Sheet)
	fmt.Printf("Parsed: %d\n", summary.Parsed)
	fmt.Printf("Inserted: %d\n", summary.Inserted)
	fmt.Printf("Skipped: %d\n", summary.Skipped)
	fmt.Printf("Errors: %d\n", summary.Errors)
	fmt.Printf("Dry run: %v\n", summary.DryRun)

	if len(summary.Samples) > 0 {
		fmt.Println("\nError samples (nothing was inserted):")
		for _, sample := range summary.Samples {
			fmt.Printf("  Row %d: %s\n", sample.Row, sample.Message)
		}
		os.Exit(1)
	}
}
