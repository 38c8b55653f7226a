package db

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS transit`,
	`CREATE TABLE IF NOT EXISTS transit.search_history (
		search_id   BIGSERIAL PRIMARY KEY,
		cache_key   TEXT NOT NULL,
		from_station TEXT NOT NULL,
		to_station  TEXT NOT NULL,
		search_date TEXT,
		search_time TEXT,
		via_station TEXT,
		sort_order  TEXT,
		route_count INTEGER NOT NULL,
		routes      JSONB NOT NULL DEFAULT '[]'::jsonb,
		searched_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS search_history_searched_at_idx
		ON transit.search_history (searched_at DESC)`,
	`CREATE INDEX IF NOT EXISTS search_history_stations_idx
		ON transit.search_history (from_station, to_station)`,
}

// EnsureSchema creates the history schema when missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	db.logger.Debug("Search history schema ready")
	return nil
}
