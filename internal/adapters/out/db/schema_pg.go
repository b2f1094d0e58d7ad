// internal/adapters/out/db/schema_pg.go
package db

import (
	"context"
	"database/sql"
	"fmt"

	dbcommon "thriftmall/internal/adapters/out/db/common"
)

// Tables used by the PostgreSQL backend.
const (
	DefaultUsageTable   = "usage_records"
	DefaultCartTable    = "carts"
	DefaultProfileTable = "user_profiles"
)

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  collection  TEXT        NOT NULL,
  user_id     TEXT        NOT NULL,
  fields      JSONB       NOT NULL DEFAULT '{}'::jsonb,
  last_write  TIMESTAMPTZ NULL,
  PRIMARY KEY (collection, user_id)
)`, dbcommon.QuoteTable(DefaultUsageTable)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS usage_records_last_write_idx ON %s (collection, last_write)`,
			dbcommon.QuoteTable(DefaultUsageTable)),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  user_id     TEXT        PRIMARY KEY,
  cart        JSONB       NOT NULL DEFAULT '{}'::jsonb,
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`, dbcommon.QuoteTable(DefaultCartTable)),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  user_id     TEXT        PRIMARY KEY,
  data        JSONB       NOT NULL DEFAULT '{}'::jsonb,
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`, dbcommon.QuoteTable(DefaultProfileTable)),
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
