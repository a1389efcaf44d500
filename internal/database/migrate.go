package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		external_id BIGINT NOT NULL UNIQUE,
		username TEXT,
		first_name TEXT NOT NULL,
		last_name TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		id BIGSERIAL PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		amount_cents BIGINT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('save', 'adjust', 'archive')),
		reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_user_id ON entries (user_id, id DESC)`,
	`CREATE OR REPLACE FUNCTION entries_append_only() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'entries are append-only';
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS entries_append_only ON entries`,
	`CREATE TRIGGER entries_append_only
		BEFORE UPDATE OR DELETE ON entries
		FOR EACH ROW EXECUTE FUNCTION entries_append_only()`,
}

// Migrate creates the users and entries tables inside one transaction.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}
