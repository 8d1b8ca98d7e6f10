package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sell_listings (
		class_id      NUMERIC(20,0) NOT NULL,
		token_id      NUMERIC(20,0) NOT NULL,
		seller        UUID          NOT NULL,
		current_price NUMERIC(20,0) NOT NULL,
		winner        UUID,
		start_time    NUMERIC(20,0) NOT NULL,
		end_time      NUMERIC(20,0) NOT NULL,
		PRIMARY KEY (class_id, token_id),
		CHECK (start_time < end_time)
	)`,
	`CREATE TABLE IF NOT EXISTS rent_listings (
		class_id   NUMERIC(20,0) NOT NULL,
		token_id   NUMERIC(20,0) NOT NULL,
		leaser     UUID          NOT NULL,
		renter     UUID,
		collateral NUMERIC(20,0) NOT NULL,
		price      NUMERIC(20,0) NOT NULL,
		start_time NUMERIC(20,0) NOT NULL DEFAULT 0,
		duration   NUMERIC(20,0) NOT NULL,
		PRIMARY KEY (class_id, token_id)
	)`,
	`CREATE TABLE IF NOT EXISTS balances (
		account UUID          PRIMARY KEY,
		amount  NUMERIC(20,0) NOT NULL,
		CONSTRAINT balances_amount_range CHECK (amount >= 0 AND amount <= 18446744073709551615)
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		class_id       NUMERIC(20,0) PRIMARY KEY,
		owner          UUID          NOT NULL,
		metadata       BYTEA         NOT NULL DEFAULT ''::bytea,
		total_issuance NUMERIC(20,0) NOT NULL DEFAULT 0,
		next_token     NUMERIC(20,0) NOT NULL DEFAULT 0,
		CONSTRAINT classes_id_range CHECK (class_id <= 18446744073709551615),
		CHECK (total_issuance >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		class_id NUMERIC(20,0) NOT NULL REFERENCES classes (class_id),
		token_id NUMERIC(20,0) NOT NULL,
		owner    UUID          NOT NULL,
		metadata BYTEA         NOT NULL DEFAULT ''::bytea,
		PRIMARY KEY (class_id, token_id)
	)`,
	`CREATE INDEX IF NOT EXISTS tokens_owner_idx ON tokens (owner)`,
	`CREATE TABLE IF NOT EXISTS market_events (
		id           UUID          PRIMARY KEY,
		kind         TEXT          NOT NULL,
		account      UUID          NOT NULL,
		class_id     NUMERIC(20,0) NOT NULL,
		token_id     NUMERIC(20,0) NOT NULL,
		amount       NUMERIC(20,0) NOT NULL,
		counterparty UUID,
		ts           NUMERIC(20,0) NOT NULL,
		recorded_at  TIMESTAMPTZ   NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS market_events_asset_idx ON market_events (class_id, token_id, ts)`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	logger.Info("database schema ready", "statements", len(schema))
	return nil
}
