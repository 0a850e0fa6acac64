// Package database provides the Postgres connection and schema for the
// casino engine.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the SQL database connection.
type DB struct {
	*sql.DB
}

// New creates a new database connection.
func New(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates all required tables (idempotent).
func (db *DB) Migrate() error {
	schema := `
	-- Accounts: soft-disabled via the banned flag, never deleted.
	CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		username VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'player',
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		banned BOOLEAN NOT NULL DEFAULT FALSE,
		last_reward_at TIMESTAMP,
		reward_streak INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Login sessions backing issued tokens.
	CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		account_id UUID NOT NULL REFERENCES accounts(id),
		token TEXT NOT NULL,
		ip_address VARCHAR(45) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_activity_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'active'
	);

	-- Append-only movement log. balance == sum(entries) per account.
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id UUID PRIMARY KEY,
		account_id UUID NOT NULL REFERENCES accounts(id),
		amount BIGINT NOT NULL,
		reason VARCHAR(50) NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	-- Accepted wagers, written in the same transaction as their debit.
	CREATE TABLE IF NOT EXISTS wagers (
		id UUID PRIMARY KEY,
		account_id UUID NOT NULL REFERENCES accounts(id),
		table_id VARCHAR(64) NOT NULL,
		round_id UUID NOT NULL,
		choice VARCHAR(64) NOT NULL,
		stake BIGINT NOT NULL CHECK (stake > 0),
		placed_at TIMESTAMP NOT NULL
	);

	-- Round records for audit and public display.
	CREATE TABLE IF NOT EXISTS rounds (
		id UUID PRIMARY KEY,
		table_id VARCHAR(64) NOT NULL,
		status VARCHAR(20) NOT NULL,
		winner VARCHAR(64),
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP
	);

	-- Single-use promo codes.
	CREATE TABLE IF NOT EXISTS promo_codes (
		code VARCHAR(64) PRIMARY KEY,
		amount BIGINT NOT NULL CHECK (amount > 0),
		redeemed_by UUID REFERENCES accounts(id),
		redeemed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	-- Significant events.
	CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		type VARCHAR(100) NOT NULL,
		severity VARCHAR(20) NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		account_id UUID,
		table_id VARCHAR(64),
		round_id UUID,
		description TEXT NOT NULL,
		data JSONB,
		component VARCHAR(100) NOT NULL
	);

	-- Operator switches (gaming enabled, etc).
	CREATE TABLE IF NOT EXISTS system_state (
		key VARCHAR(64) PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		updated_by VARCHAR(255) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_account ON sessions(account_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries(account_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_created ON ledger_entries(created_at);
	CREATE INDEX IF NOT EXISTS idx_wagers_round ON wagers(round_id);
	CREATE INDEX IF NOT EXISTS idx_wagers_account ON wagers(account_id);
	CREATE INDEX IF NOT EXISTS idx_rounds_table ON rounds(table_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_account ON audit_events(account_id);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Reset drops all tables (for testing).
func (db *DB) Reset() error {
	_, err := db.Exec(`
		DROP TABLE IF EXISTS system_state CASCADE;
		DROP TABLE IF EXISTS audit_events CASCADE;
		DROP TABLE IF EXISTS promo_codes CASCADE;
		DROP TABLE IF EXISTS rounds CASCADE;
		DROP TABLE IF EXISTS wagers CASCADE;
		DROP TABLE IF EXISTS ledger_entries CASCADE;
		DROP TABLE IF EXISTS sessions CASCADE;
		DROP TABLE IF EXISTS accounts CASCADE;
	`)
	return err
}

// CleanData truncates all tables without dropping them (for testing).
func (db *DB) CleanData() error {
	_, err := db.Exec(`
		TRUNCATE TABLE system_state, audit_events, promo_codes, rounds, wagers,
		               ledger_entries, sessions, accounts CASCADE;
	`)
	return err
}
