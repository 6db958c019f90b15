// Package store persists the ledger in SQL. One implementation serves SQLite
// (embedded, development, tests) and PostgreSQL (production); the dialect only
// changes placeholders, row locking and a handful of column types.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/ledger-core/internal/ledger"
)

// Dialect selects SQL flavour differences
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

const (
	maxRetries       = 3
	defaultTxTimeout = 10 * time.Second
)

// SQLStore implements ledger.Store over database/sql
type SQLStore struct {
	db        *sql.DB
	dialect   Dialect
	txTimeout time.Duration
	onClose   func()
}

// New wraps an open database handle
func New(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, txTimeout: defaultTxTimeout}
}

// Open opens a store for driver "sqlite" or "postgres"
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return OpenSQLite(dsn)
	case "postgres", "postgresql", "pgx":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// DB exposes the underlying handle for migrations and diagnostics
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Dialect reports the SQL flavour of the store
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// WithTx runs fn in a transaction, committing when it returns nil. Serialization
// failures and busy databases are retried with a short backoff.
func (s *SQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !s.retryable(err) {
			return err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, lastErr)
}

func (s *SQLStore) runTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	opts := &sql.TxOptions{}
	if s.dialect == DialectPostgres {
		opts.Isolation = sql.LevelSerializable
	}
	tx, err := s.db.BeginTx(txCtx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(txCtx, &sqlTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) retryable(err error) bool {
	if s.dialect == DialectPostgres {
		return isSerializationFailure(err)
	}
	return isBusy(err)
}

// Close closes the database
func (s *SQLStore) Close() error {
	err := s.db.Close()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}

// sqlTx implements ledger.Tx
type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (t *sqlTx) rebind(query string) string {
	if t.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.rebind(query), args...)
}

func (t *sqlTx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.rebind(query), args...)
}

func (t *sqlTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.rebind(query), args...)
}

// forUpdate returns the row-locking suffix where the dialect has one. SQLite
// write transactions are already exclusive.
func (t *sqlTx) forUpdate(lock bool) string {
	if lock && t.dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
