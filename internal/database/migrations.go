package database

import (
	"context"
	"fmt"
)

// RunMigrations creates the database schema. Every statement is idempotent.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			monthly_budget NUMERIC(12, 2) NOT NULL DEFAULT 100,
			currency TEXT NOT NULL DEFAULT 'GBP' CHECK (currency IN ('GBP', 'USD', 'EUR')),
			chat_id BIGINT UNIQUE,
			chat_display_name TEXT,
			linking_code TEXT,
			linking_code_expiry TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT accounts_linking_code_pair CHECK (
				(linking_code IS NULL) = (linking_code_expiry IS NULL)
			)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_linking_code
			ON accounts(linking_code) WHERE linking_code IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS expenses (
			id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			amount NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
			description VARCHAR(200) NOT NULL,
			category TEXT NOT NULL DEFAULT 'Other'
				CHECK (category IN ('Food', 'Transport', 'Entertainment', 'Shopping', 'Bills', 'Other')),
			date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			source TEXT NOT NULL DEFAULT 'web' CHECK (source IN ('web', 'chat')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_expenses_account_date ON expenses(account_id, date)`,

		`CREATE TABLE IF NOT EXISTS conversation_states (
			chat_id BIGINT PRIMARY KEY,
			state TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_conversation_states_expires_at ON conversation_states(expires_at)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
