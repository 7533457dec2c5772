package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE command_scope AS ENUM ('bot', 'tournament', 'async_tournament'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN CREATE TYPE command_response AS ENUM ('text', 'dynamic'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS command_definitions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		scope command_scope NOT NULL DEFAULT 'bot',
		category TEXT NOT NULL,
		tournament_id TEXT NOT NULL DEFAULT '',
		async_tournament_id TEXT NOT NULL DEFAULT '',
		response_type command_response NOT NULL DEFAULT 'text',
		response_text TEXT NOT NULL DEFAULT '',
		handler_name TEXT NOT NULL DEFAULT '',
		cooldown_seconds INTEGER NOT NULL DEFAULT 0,
		requires_linked_account BOOLEAN NOT NULL DEFAULT FALSE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_command_definitions_lookup ON command_definitions (category, name) WHERE enabled`,
	`CREATE TABLE IF NOT EXISTS linked_accounts (
		external_id TEXT PRIMARY KEY,
		user_id UUID NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tournament_participants (
		tournament_id TEXT NOT NULL,
		category TEXT NOT NULL,
		external_id TEXT NOT NULL,
		PRIMARY KEY (tournament_id, external_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tournament_participants_category ON tournament_participants (category, tournament_id)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
