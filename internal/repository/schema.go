package repository

import (
	"context"
	"fmt"
)

// The schema sticks to types both postgres and sqlite accept.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ncm_rules (
		id TEXT PRIMARY KEY,
		ncm TEXT NOT NULL,
		uf TEXT NOT NULL,
		municipio TEXT,
		scenario TEXT,
		date_start TEXT NOT NULL,
		date_end TEXT,
		aliquota_ibs DOUBLE PRECISION,
		aliquota_cbs DOUBLE PRECISION,
		aliquota_is DOUBLE PRECISION,
		explanation_markdown TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ncm_rules_lookup ON ncm_rules (ncm, uf, date_start)`,
}

// Migrate creates the tables the repositories need.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
