package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ledger-core/internal/ledger"
)

const entryColumns = `e.id, e.account_id, a.name, e.effective_date, e.description, e.raw_amount,
	e.direction, e.signed_amount, e.category_id, e.is_matched, e.is_cleared, e.transfer_id,
	e.counterpart_entry_id, e.transfer_direction, e.transfer_orphaned, e.created_by,
	e.created_at, e.updated_at`

const entryFrom = ` FROM ledger_entries e JOIN accounts a ON a.id = e.account_id`

const listingOrder = ` ORDER BY e.effective_date DESC, e.id DESC`

func scanEntry(row scanner) (*ledger.Entry, error) {
	var (
		e                                 ledger.Entry
		category, transferID, counterpart sql.NullString
		transferDirection                 sql.NullString
		orphaned                          bool
	)
	err := row.Scan(&e.ID, &e.AccountID, &e.AccountName, &e.EffectiveDate, &e.Description, &e.RawAmount,
		&e.Direction, &e.SignedAmount, &category, &e.IsMatched, &e.IsCleared, &transferID,
		&counterpart, &transferDirection, &orphaned, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.CategoryID = category.String
	if transferID.Valid {
		e.Transfer = &ledger.TransferLink{
			TransferID:         transferID.String,
			CounterpartEntryID: counterpart.String,
			Direction:          ledger.TransferDirection(transferDirection.String),
			Orphaned:           orphaned,
		}
	}
	return &e, nil
}

func (t *sqlTx) scanEntries(rows *sql.Rows) ([]*ledger.Entry, error) {
	defer rows.Close()
	entries := []*ledger.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func transferColumns(e *ledger.Entry) (sql.NullString, sql.NullString, sql.NullString, bool) {
	if e.Transfer == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullString{}, false
	}
	return nullString(e.Transfer.TransferID), nullString(e.Transfer.CounterpartEntryID),
		nullString(string(e.Transfer.Direction)), e.Transfer.Orphaned
}

func (t *sqlTx) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	transferID, counterpart, direction, orphaned := transferColumns(e)
	_, err := t.exec(ctx, `INSERT INTO ledger_entries (id, account_id, effective_date, description,
		raw_amount, direction, signed_amount, category_id, is_matched, is_cleared, transfer_id,
		counterpart_entry_id, transfer_direction, transfer_orphaned, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.EffectiveDate, e.Description, e.RawAmount, string(e.Direction), e.SignedAmount,
		nullString(e.CategoryID), e.IsMatched, e.IsCleared, transferID, counterpart, direction, orphaned,
		e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	return err
}

func (t *sqlTx) GetEntry(ctx context.Context, id string) (*ledger.Entry, error) {
	e, err := scanEntry(t.queryRow(ctx, `SELECT `+entryColumns+entryFrom+` WHERE e.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NotFound("entry", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

func (t *sqlTx) GetEntries(ctx context.Context, ids []string) ([]*ledger.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := t.query(ctx, `SELECT `+entryColumns+entryFrom+` WHERE e.id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	return t.scanEntries(rows)
}

func (t *sqlTx) UpdateEntry(ctx context.Context, e *ledger.Entry) error {
	transferID, counterpart, direction, orphaned := transferColumns(e)
	res, err := t.exec(ctx, `UPDATE ledger_entries SET description = ?, effective_date = ?, category_id = ?,
		is_matched = ?, is_cleared = ?, transfer_id = ?, counterpart_entry_id = ?, transfer_direction = ?,
		transfer_orphaned = ?, updated_at = ? WHERE id = ?`,
		e.Description, e.EffectiveDate, nullString(e.CategoryID), e.IsMatched, e.IsCleared,
		transferID, counterpart, direction, orphaned, e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "entry", e.ID)
}

func (t *sqlTx) DeleteEntry(ctx context.Context, id string) error {
	res, err := t.exec(ctx, `DELETE FROM ledger_entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "entry", id)
}

func (t *sqlTx) ListEntries(ctx context.Context, f ledger.EntryFilter, after *ledger.Cursor, limit int) ([]*ledger.Entry, error) {
	where, args := t.filterClause(f)
	if after != nil {
		where += ` AND (e.effective_date < ? OR (e.effective_date = ? AND e.id < ?))`
		args = append(args, after.Date, after.Date, after.ID)
	}
	args = append(args, limit)
	rows, err := t.query(ctx, `SELECT `+entryColumns+entryFrom+where+listingOrder+` LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	return t.scanEntries(rows)
}

func (t *sqlTx) CountEntries(ctx context.Context, f ledger.EntryFilter) (int, error) {
	where, args := t.filterClause(f)
	var n int
	err := t.queryRow(ctx, `SELECT COUNT(*)`+entryFrom+where, args...).Scan(&n)
	return n, err
}

func (t *sqlTx) CountEntriesAmong(ctx context.Context, f ledger.EntryFilter, ids []string) (int, error) {
	where, args := t.filterClause(f)
	total := 0
	for start := 0; start < len(ids); start += maxBoundIDs {
		chunk := ids[start:min(start+maxBoundIDs, len(ids))]
		var n int
		q := `SELECT COUNT(*)` + entryFrom + where + ` AND e.id IN (` + placeholders(len(chunk)) + `)`
		if err := t.queryRow(ctx, q, append(append([]any{}, args...), stringArgs(chunk)...)...).Scan(&n); err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (t *sqlTx) EntryIDs(ctx context.Context, f ledger.EntryFilter) ([]string, error) {
	where, args := t.filterClause(f)
	rows, err := t.query(ctx, `SELECT e.id`+entryFrom+where+listingOrder, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *sqlTx) SummarizeEntries(ctx context.Context, f ledger.EntryFilter) (ledger.FilterSummary, error) {
	where, args := t.filterClause(f)
	var summary ledger.FilterSummary
	var earliest, latest sql.NullString
	if err := t.queryRow(ctx, `SELECT MIN(e.effective_date), MAX(e.effective_date)`+entryFrom+where, args...).
		Scan(&earliest, &latest); err != nil {
		return summary, err
	}
	summary.EarliestDate, summary.LatestDate = earliest.String, latest.String

	rows, err := t.query(ctx, `SELECT DISTINCT a.name`+entryFrom+where+` ORDER BY a.name LIMIT ?`,
		append(args, ledger.MaxSummaryAccounts)...)
	if err != nil {
		return summary, err
	}
	defer rows.Close()
	summary.AffectedAccounts = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return summary, err
		}
		summary.AffectedAccounts = append(summary.AffectedAccounts, name)
	}
	return summary, rows.Err()
}

func (t *sqlTx) EntriesByTransfer(ctx context.Context, transferID string) ([]*ledger.Entry, error) {
	rows, err := t.query(ctx, `SELECT `+entryColumns+entryFrom+` WHERE e.transfer_id = ? ORDER BY e.id`, transferID)
	if err != nil {
		return nil, err
	}
	return t.scanEntries(rows)
}

func (t *sqlTx) ListTransferEntries(ctx context.Context, accountID string) ([]*ledger.Entry, error) {
	query := `SELECT ` + entryColumns + entryFrom + ` WHERE e.transfer_id IS NOT NULL`
	var args []any
	if accountID != "" {
		query += ` AND e.transfer_id IN (SELECT transfer_id FROM ledger_entries WHERE account_id = ? AND transfer_id IS NOT NULL)`
		args = append(args, accountID)
	}
	query += ` ORDER BY e.effective_date DESC, e.transfer_id, e.id`
	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return t.scanEntries(rows)
}

func (t *sqlTx) SetEntriesCategory(ctx context.Context, ids []string, categoryID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{nullString(categoryID), time.Now().UTC()}, stringArgs(ids)...)
	res, err := t.exec(ctx, `UPDATE ledger_entries SET category_id = ?, updated_at = ?
		WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

func (t *sqlTx) SetEntriesCleared(ctx context.Context, ids []string, cleared bool) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{cleared, time.Now().UTC(), false}, stringArgs(ids)...)
	res, err := t.exec(ctx, `UPDATE ledger_entries SET is_cleared = ?, updated_at = ?
		WHERE is_matched = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

// maxBoundIDs keeps id lists under SQLite's bound-parameter limit
const maxBoundIDs = 500

// filterClause renders an EntryFilter as a WHERE clause over the e/a aliases
func (t *sqlTx) filterClause(f ledger.EntryFilter) (string, []any) {
	conds := []string{"1=1"}
	var args []any

	if len(f.AccountIDs) > 0 {
		conds = append(conds, `e.account_id IN (`+placeholders(len(f.AccountIDs))+`)`)
		args = append(args, stringArgs(f.AccountIDs)...)
	}
	if len(f.CategoryIDs) > 0 {
		conds = append(conds, `e.category_id IN (`+placeholders(len(f.CategoryIDs))+`)`)
		args = append(args, stringArgs(f.CategoryIDs)...)
	}
	if f.DateFrom != "" {
		conds = append(conds, `e.effective_date >= ?`)
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		conds = append(conds, `e.effective_date <= ?`)
		args = append(args, f.DateTo)
	}
	if f.Search != "" {
		conds = append(conds, `LOWER(e.description) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(f.Search))+"%")
	}
	if f.TransfersOnly {
		conds = append(conds, `e.transfer_id IS NOT NULL`)
	}
	if f.UncategorizedOnly {
		// Stale category ids count as uncategorized, matching how entries are displayed.
		conds = append(conds, `(e.category_id IS NULL OR NOT EXISTS (SELECT 1 FROM categories c WHERE c.id = e.category_id))`)
	}
	if f.ExcludesReconciled() {
		conds = append(conds, `e.is_matched = ? AND e.is_cleared = ?`)
		args = append(args, false, false)
	}
	if f.Direction != "" {
		conds = append(conds, `e.direction = ?`)
		args = append(args, string(f.Direction))
	}
	if f.AmountMin.Valid {
		conds = append(conds, t.absAmount()+` >= CAST(? AS `+t.numericType()+`)`)
		args = append(args, f.AmountMin.Decimal.Abs().String())
	}
	if f.AmountMax.Valid {
		conds = append(conds, t.absAmount()+` <= CAST(? AS `+t.numericType()+`)`)
		args = append(args, f.AmountMax.Decimal.Abs().String())
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (t *sqlTx) absAmount() string {
	if t.dialect == DialectPostgres {
		return `ABS(e.signed_amount)`
	}
	return `ABS(CAST(e.signed_amount AS REAL))`
}

func (t *sqlTx) numericType() string {
	if t.dialect == DialectPostgres {
		return "NUMERIC"
	}
	return "REAL"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
