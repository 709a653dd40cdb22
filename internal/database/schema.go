package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the report and item tables if they do not exist.
// driver selects the dialect: "sqlite" or any postgres driver.
func Migrate(ctx context.Context, db *sql.DB, driver string, t Tables) error {
	idCol := "BIGSERIAL PRIMARY KEY"
	tsType := "TIMESTAMPTZ"
	if driver == "sqlite" {
		idCol = "INTEGER PRIMARY KEY AUTOINCREMENT"
		tsType = "TIMESTAMP"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id %s,
			type INTEGER NOT NULL,
			no_rep TEXT NOT NULL DEFAULT '',
			no_seri TEXT NOT NULL DEFAULT '',
			kd_cus TEXT NOT NULL DEFAULT '',
			nm_cus TEXT NOT NULL DEFAULT '',
			item_code TEXT NOT NULL DEFAULT '',
			item_name TEXT NOT NULL DEFAULT '',
			reporter TEXT NOT NULL DEFAULT '',
			technician TEXT NOT NULL DEFAULT '',
			call_at %[3]s NULL,
			arrival_at %[3]s NULL,
			start_at %[3]s NULL,
			finish_at %[3]s NULL,
			complaint TEXT NOT NULL DEFAULT '',
			problem TEXT NOT NULL DEFAULT '',
			solution TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			rep_count INTEGER NOT NULL DEFAULT 0,
			unit_count INTEGER NOT NULL DEFAULT 0,
			attachment TEXT NOT NULL DEFAULT '',
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at %[3]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at %[3]s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, t.Reports, idCol, tsType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id %s,
			no_seri TEXT NOT NULL,
			item_code TEXT NOT NULL,
			item_name TEXT NOT NULL DEFAULT '',
			qty NUMERIC(18,4) NOT NULL DEFAULT 0,
			created_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, t.Items, idCol, tsType),
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
