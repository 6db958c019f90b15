package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Migrate creates the ledger schema if it does not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for i, stmt := range s.migrations() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	return nil
}

func (s *SQLStore) migrations() []string {
	money, rate, flag, ts := "TEXT", "TEXT", "INTEGER", "TIMESTAMP"
	if s.dialect == DialectPostgres {
		money, rate, flag, ts = "NUMERIC(18,2)", "NUMERIC(8,5)", "BOOLEAN", "TIMESTAMPTZ"
	}
	r := strings.NewReplacer("{money}", money, "{rate}", rate, "{flag}", flag, "{ts}", ts, "{false}", falseLiteral(s.dialect))

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			account_type TEXT NOT NULL CHECK (account_type IN ('ASSET', 'LIABILITY')),
			subtype TEXT NOT NULL,
			currency TEXT NOT NULL,
			current_balance {money} NOT NULL DEFAULT 0,
			credit_limit {money},
			interest_rate {rate},
			created_by TEXT NOT NULL DEFAULT '',
			created_at {ts} NOT NULL,
			updated_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS category_groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			group_type TEXT NOT NULL CHECK (group_type IN ('INCOME', 'EXPENSE', 'TRANSFER')),
			created_at {ts} NOT NULL,
			UNIQUE (name, group_type)
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			group_id TEXT NOT NULL REFERENCES category_groups(id),
			created_at {ts} NOT NULL,
			UNIQUE (group_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			effective_date TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			raw_amount {money} NOT NULL,
			direction TEXT NOT NULL CHECK (direction IN ('in', 'out')),
			signed_amount {money} NOT NULL,
			category_id TEXT,
			is_matched {flag} NOT NULL DEFAULT {false},
			is_cleared {flag} NOT NULL DEFAULT {false},
			transfer_id TEXT,
			counterpart_entry_id TEXT,
			transfer_direction TEXT,
			transfer_orphaned {flag} NOT NULL DEFAULT {false},
			created_by TEXT NOT NULL DEFAULT '',
			created_at {ts} NOT NULL,
			updated_at {ts} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_listing ON ledger_entries (effective_date DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries (account_id, effective_date DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_category ON ledger_entries (category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_transfer ON ledger_entries (transfer_id)`,
	}
	for i := range stmts {
		stmts[i] = r.Replace(stmts[i])
	}
	return stmts
}

func falseLiteral(d Dialect) string {
	if d == DialectPostgres {
		return "FALSE"
	}
	return "0"
}
