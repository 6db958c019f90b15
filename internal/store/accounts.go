package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/ledger-core/internal/ledger"
)

const accountColumns = `id, name, account_type, subtype, currency, current_balance,
	credit_limit, interest_rate, created_by, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*ledger.Account, error) {
	a := &ledger.Account{}
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Subtype, &a.Currency, &a.CurrentBalance,
		&a.CreditLimit, &a.InterestRate, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (t *sqlTx) InsertAccount(ctx context.Context, a *ledger.Account) error {
	_, err := t.exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, string(a.Type), string(a.Subtype), a.Currency, a.CurrentBalance,
		a.CreditLimit, a.InterestRate, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	return err
}

func (t *sqlTx) GetAccount(ctx context.Context, id string, lock bool) (*ledger.Account, error) {
	row := t.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`+t.forUpdate(lock), id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NotFound("account", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (t *sqlTx) ListAccounts(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	var args []any
	if filter.Type != "" {
		query += ` AND account_type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Subtype != "" {
		query += ` AND subtype = ?`
		args = append(args, string(filter.Subtype))
	}
	query += ` ORDER BY name, id`

	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*ledger.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (t *sqlTx) UpdateAccount(ctx context.Context, a *ledger.Account) error {
	res, err := t.exec(ctx, `UPDATE accounts SET name = ?, account_type = ?, subtype = ?, currency = ?,
		credit_limit = ?, interest_rate = ?, updated_at = ? WHERE id = ?`,
		a.Name, string(a.Type), string(a.Subtype), a.Currency, a.CreditLimit, a.InterestRate, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "account", a.ID)
}

func (t *sqlTx) DeleteAccount(ctx context.Context, id string) error {
	res, err := t.exec(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return expectOne(res, "account", id)
}

// AddToBalance is a read-modify-write so the arithmetic stays in decimal on
// every backend. The caller's transaction makes it atomic.
func (t *sqlTx) AddToBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	var current decimal.Decimal
	err := t.queryRow(ctx, `SELECT current_balance FROM accounts WHERE id = ?`+t.forUpdate(true), accountID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.NotFound("account", accountID)
	}
	if err != nil {
		return err
	}
	return t.SetBalance(ctx, accountID, current.Add(delta))
}

func (t *sqlTx) SetBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	res, err := t.exec(ctx, `UPDATE accounts SET current_balance = ? WHERE id = ?`, balance, accountID)
	if err != nil {
		return err
	}
	return expectOne(res, "account", accountID)
}

func (t *sqlTx) SumSignedAmounts(ctx context.Context, accountID string) (decimal.Decimal, error) {
	rows, err := t.query(ctx, `SELECT signed_amount FROM ledger_entries WHERE account_id = ?`, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var amt decimal.Decimal
		if err := rows.Scan(&amt); err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(amt)
	}
	return sum, rows.Err()
}

func (t *sqlTx) CountAccountEntries(ctx context.Context, accountID string) (int, error) {
	var n int
	err := t.queryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}

func expectOne(res sql.Result, entity, id string) error {
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.NotFound(entity, id)
	}
	return nil
}
