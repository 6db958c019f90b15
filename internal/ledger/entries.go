package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CreateEntryRequest represents a request to post a single entry
type CreateEntryRequest struct {
	AccountID     string          `json:"account_id"`
	EffectiveDate string          `json:"effective_date"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     Direction       `json:"direction"`
	Description   string          `json:"description"`
	CategoryID    string          `json:"category_id,omitempty"`
}

// UpdateEntryRequest carries entry changes. Description, date and category are
// mutable; a differing amount, direction or account is rejected.
// CategoryID pointing at "" clears the category.
type UpdateEntryRequest struct {
	Description   *string          `json:"description,omitempty"`
	EffectiveDate *string          `json:"effective_date,omitempty"`
	CategoryID    *string          `json:"category_id,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Direction     *Direction       `json:"direction,omitempty"`
	AccountID     *string          `json:"account_id,omitempty"`
}

// DeleteEntryResult reports the removed entry and any transfer counterpart left orphaned
type DeleteEntryResult struct {
	EntryID         string `json:"entry_id"`
	OrphanedEntryID string `json:"orphaned_entry_id,omitempty"`
}

type postParams struct {
	date        string
	amount      decimal.Decimal
	direction   Direction
	description string
	categoryID  string
	transfer    *TransferLink
	entryID     string
}

// postEntry inserts an entry and applies its signed amount to the account balance
func (s *LedgerService) postEntry(ctx context.Context, tx Tx, account *Account, p postParams) (*Entry, error) {
	signed, err := ResolveSignedAmount(account.Type, p.direction, p.amount)
	if err != nil {
		return nil, err
	}
	id := p.entryID
	if id == "" {
		id = s.newEntryID()
	}
	now := s.now().UTC()
	e := &Entry{
		ID:            id,
		AccountID:     account.ID,
		AccountName:   account.Name,
		EffectiveDate: p.date,
		Description:   p.description,
		RawAmount:     NewMoney(p.amount.Abs()),
		Direction:     p.direction,
		SignedAmount:  NewMoney(signed),
		CategoryID:    p.categoryID,
		Transfer:      p.transfer,
		CreatedBy:     CallerFromContext(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.InsertEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to insert entry: %w", err)
	}
	if err := tx.AddToBalance(ctx, account.ID, signed); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	return e, nil
}

// removeEntry deletes an entry and reverses its balance effect
func (s *LedgerService) removeEntry(ctx context.Context, tx Tx, e *Entry) error {
	if err := tx.DeleteEntry(ctx, e.ID); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if err := tx.AddToBalance(ctx, e.AccountID, e.SignedAmount.Neg()); err != nil {
		return fmt.Errorf("failed to reverse balance: %w", err)
	}
	return nil
}

func (s *LedgerService) requireCategory(ctx context.Context, tx Tx, id string) (*Category, error) {
	c, err := tx.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateEntry posts an entry and adjusts the account balance in one transaction
func (s *LedgerService) CreateEntry(ctx context.Context, req CreateEntryRequest) (*Entry, error) {
	date, err := NormalizeDate(req.EffectiveDate)
	if err != nil {
		return nil, err
	}
	if req.Amount.IsZero() {
		return nil, InvalidAmount("amount must be non-zero")
	}
	if HasSubCent(req.Amount) {
		return nil, InvalidAmount(fmt.Sprintf("amount %s has more than %d decimal places", req.Amount, MoneyScale))
	}

	var entry *Entry
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		account, err := tx.GetAccount(ctx, req.AccountID, true)
		if err != nil {
			return err
		}
		if req.CategoryID != "" {
			if _, err := s.requireCategory(ctx, tx, req.CategoryID); err != nil {
				return err
			}
		}
		entry, err = s.postEntry(ctx, tx, account, postParams{
			date:        date,
			amount:      req.Amount,
			direction:   req.Direction,
			description: strings.TrimSpace(req.Description),
			categoryID:  req.CategoryID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "entry_created", "entry_id", entry.ID, "account_id", entry.AccountID, "caller", entry.CreatedBy)
	return entry, nil
}

// GetEntry returns one entry
func (s *LedgerService) GetEntry(ctx context.Context, id string) (*Entry, error) {
	var entry *Entry
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		entry, err = tx.GetEntry(ctx, id)
		return err
	})
	return entry, err
}

// UpdateEntry edits the mutable fields of an entry. Moving a transfer side to
// another date moves its counterpart too, so both sides keep the same date.
func (s *LedgerService) UpdateEntry(ctx context.Context, id string, req UpdateEntryRequest) (*Entry, error) {
	var entry *Entry
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		e, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if req.AccountID != nil && *req.AccountID != e.AccountID {
			return ImmutableField("account_id")
		}
		if req.Amount != nil && !req.Amount.Abs().Equal(e.RawAmount.Decimal) {
			return ImmutableField("amount")
		}
		if req.Direction != nil && *req.Direction != e.Direction {
			return ImmutableField("direction")
		}

		now := s.now().UTC()
		if req.Description != nil {
			e.Description = strings.TrimSpace(*req.Description)
		}
		if req.CategoryID != nil {
			if *req.CategoryID != "" {
				if _, err := s.requireCategory(ctx, tx, *req.CategoryID); err != nil {
					return err
				}
			}
			e.CategoryID = *req.CategoryID
		}
		if req.EffectiveDate != nil {
			date, err := NormalizeDate(*req.EffectiveDate)
			if err != nil {
				return err
			}
			if date != e.EffectiveDate && e.Transfer != nil && e.Transfer.CounterpartEntryID != "" {
				counterpart, err := tx.GetEntry(ctx, e.Transfer.CounterpartEntryID)
				if err != nil {
					return fmt.Errorf("failed to load transfer counterpart: %w", err)
				}
				counterpart.EffectiveDate = date
				counterpart.UpdatedAt = now
				if err := tx.UpdateEntry(ctx, counterpart); err != nil {
					return fmt.Errorf("failed to update transfer counterpart: %w", err)
				}
			}
			e.EffectiveDate = date
		}
		e.UpdatedAt = now
		if err := tx.UpdateEntry(ctx, e); err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteEntry removes one entry and reverses its balance effect. Deleting one
// side of a transfer leaves the other side in place, flagged as orphaned; use
// DeleteTransfer to remove both.
func (s *LedgerService) DeleteEntry(ctx context.Context, id string) (*DeleteEntryResult, error) {
	result := &DeleteEntryResult{EntryID: id}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		e, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if e.Transfer != nil && e.Transfer.CounterpartEntryID != "" {
			counterpart, err := tx.GetEntry(ctx, e.Transfer.CounterpartEntryID)
			if err != nil && CodeOf(err) != CodeNotFound {
				return fmt.Errorf("failed to load transfer counterpart: %w", err)
			}
			if counterpart != nil {
				counterpart.Transfer.CounterpartEntryID = ""
				counterpart.Transfer.Orphaned = true
				counterpart.UpdatedAt = s.now().UTC()
				if err := tx.UpdateEntry(ctx, counterpart); err != nil {
					return fmt.Errorf("failed to orphan transfer counterpart: %w", err)
				}
				result.OrphanedEntryID = counterpart.ID
			}
		}
		return s.removeEntry(ctx, tx, e)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "entry_deleted", "entry_id", id, "orphaned_entry_id", result.OrphanedEntryID,
		"caller", CallerFromContext(ctx))
	return result, nil
}

// ListEntries returns one page of entries matching filter, newest first.
// cursor is the NextCursor of the previous page, or "" for the first page.
func (s *LedgerService) ListEntries(ctx context.Context, filter EntryFilter, cursor string, limit int) (*EntryPage, error) {
	f, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	var after *Cursor
	if cursor != "" {
		c, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		after = &c
	}
	limit = ClampLimit(limit)

	page := &EntryPage{}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		entries, err := tx.ListEntries(ctx, f, after, limit+1)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}
		total, err := tx.CountEntries(ctx, f)
		if err != nil {
			return fmt.Errorf("failed to count entries: %w", err)
		}
		if len(entries) > limit {
			page.HasMore = true
			entries = entries[:limit]
		}
		page.Entries = entries
		page.TotalCount = total
		return nil
	})
	if err != nil {
		return nil, err
	}
	if page.Entries == nil {
		page.Entries = []*Entry{}
	}
	if page.HasMore {
		next, err := EncodeCursor(CursorAfter(page.Entries[len(page.Entries)-1]))
		if err != nil {
			return nil, err
		}
		page.NextCursor = next
	}
	return page, nil
}

// GetFilteredIDs returns every id matching filter with a summary of the population
func (s *LedgerService) GetFilteredIDs(ctx context.Context, filter EntryFilter) (*FilteredIDs, error) {
	f, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	out := &FilteredIDs{}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		ids, err := tx.EntryIDs(ctx, f)
		if err != nil {
			return fmt.Errorf("failed to collect entry ids: %w", err)
		}
		summary, err := tx.SummarizeEntries(ctx, f)
		if err != nil {
			return fmt.Errorf("failed to summarize entries: %w", err)
		}
		out.IDs = ids
		out.TotalCount = len(ids)
		out.Summary = summary
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.IDs == nil {
		out.IDs = []string{}
	}
	if out.Summary.AffectedAccounts == nil {
		out.Summary.AffectedAccounts = []string{}
	}
	return out, nil
}

// CountEntries returns the number of entries currently matching filter
func (s *LedgerService) CountEntries(ctx context.Context, filter EntryFilter) (int, error) {
	f, err := filter.Normalize()
	if err != nil {
		return 0, err
	}
	var n int
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		n, err = tx.CountEntries(ctx, f)
		return err
	})
	return n, err
}

// CountEntriesAmong counts the entries matching filter whose id is in ids
func (s *LedgerService) CountEntriesAmong(ctx context.Context, filter EntryFilter, ids []string) (int, error) {
	f, err := filter.Normalize()
	if err != nil {
		return 0, err
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		n, err = tx.CountEntriesAmong(ctx, f, ids)
		return err
	})
	return n, err
}
