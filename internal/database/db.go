package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"flk-api/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Tables carries the quoted, configurable table identifiers used in queries.
type Tables struct {
	Reports string
	Items   string
}

// NewTables quotes the configured report and item table names.
func NewTables(reports, items string) Tables {
	return Tables{
		Reports: QuoteIdentifier(reports),
		Items:   QuoteIdentifier(items),
	}
}

// QuoteIdentifier quotes a possibly schema-qualified name ("dbo.flk") one part at a time.
func QuoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// Open creates the shared connection pool and checks it is reachable.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}

	if cfg.DBDriver == "sqlite" {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
