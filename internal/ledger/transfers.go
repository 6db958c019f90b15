package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CreateTransferRequest represents a movement of money between two accounts
type CreateTransferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	EffectiveDate string          `json:"effective_date"`
	CategoryID    string          `json:"category_id,omitempty"`
	Description   string          `json:"description,omitempty"`
}

// TransferDeletion reports the entries removed by DeleteTransfer
type TransferDeletion struct {
	TransferID      string   `json:"transfer_id"`
	DeletedEntryIDs []string `json:"deleted_entry_ids"`
}

// ensureSystemCategory returns the named category of the TRANSFER system
// group, creating the group and category when missing. created reports
// whether the catalog changed.
func (s *LedgerService) ensureSystemCategory(ctx context.Context, tx Tx, name string) (cat *Category, created bool, err error) {
	group, err := tx.FindGroup(ctx, SystemGroupName, CategoryTypeTransfer)
	if err != nil && CodeOf(err) != CodeNotFound {
		return nil, false, fmt.Errorf("failed to look up system category group: %w", err)
	}
	now := s.now().UTC()
	if group == nil {
		group = &CategoryGroup{ID: s.newID(), Name: SystemGroupName, Type: CategoryTypeTransfer, CreatedAt: now}
		if err := tx.InsertGroup(ctx, group); err != nil {
			return nil, false, fmt.Errorf("failed to create system category group: %w", err)
		}
		created = true
	}
	cat, err = tx.FindCategory(ctx, group.ID, name)
	if err != nil && CodeOf(err) != CodeNotFound {
		return nil, false, fmt.Errorf("failed to look up system category: %w", err)
	}
	if cat == nil {
		cat = &Category{ID: s.newID(), Name: name, GroupID: group.ID, GroupName: group.Name, Type: group.Type, CreatedAt: now}
		if err := tx.InsertCategory(ctx, cat); err != nil {
			return nil, false, fmt.Errorf("failed to create system category: %w", err)
		}
		created = true
	}
	return cat, created, nil
}

// CreateTransfer posts the outgoing and incoming sides of a transfer and both
// balance changes in one transaction
func (s *LedgerService) CreateTransfer(ctx context.Context, req CreateTransferRequest) (*Transfer, error) {
	if req.FromAccountID == req.ToAccountID {
		return nil, &Error{Code: CodeSameAccount, ID: req.FromAccountID, Message: "from_account_id and to_account_id must be different"}
	}
	if !req.Amount.IsPositive() {
		return nil, InvalidAmount("transfer amount must be positive")
	}
	if HasSubCent(req.Amount) {
		return nil, InvalidAmount(fmt.Sprintf("transfer amount %s has more than %d decimal places", req.Amount, MoneyScale))
	}
	date, err := NormalizeDate(req.EffectiveDate)
	if err != nil {
		return nil, err
	}

	transfer := &Transfer{ID: s.newID()}
	catalogChanged := false
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		// Lock both rows in id order so opposing transfers cannot deadlock.
		locked := map[string]*Account{}
		ids := []string{req.FromAccountID, req.ToAccountID}
		sort.Strings(ids)
		for _, id := range ids {
			a, err := tx.GetAccount(ctx, id, true)
			if err != nil {
				return err
			}
			locked[id] = a
		}
		from, to := locked[req.FromAccountID], locked[req.ToAccountID]

		var (
			category *Category
			err      error
		)
		if req.CategoryID != "" {
			category, err = s.requireCategory(ctx, tx, req.CategoryID)
			if err != nil {
				return err
			}
			if category.Type != CategoryTypeTransfer {
				return InvalidInput("category_id", fmt.Sprintf("category %q is %s, transfers need a TRANSFER category", category.Name, category.Type))
			}
		} else {
			category, catalogChanged, err = s.ensureSystemCategory(ctx, tx, TransferCategoryName)
			if err != nil {
				return err
			}
		}

		outDesc, inDesc := transferDescriptions(req.Description, from, to)
		outID, inID := s.newEntryID(), s.newEntryID()

		transfer.Out, err = s.postEntry(ctx, tx, from, postParams{
			entryID:     outID,
			date:        date,
			amount:      req.Amount,
			direction:   DirectionOut,
			description: outDesc,
			categoryID:  category.ID,
			transfer:    &TransferLink{TransferID: transfer.ID, CounterpartEntryID: inID, Direction: TransferOutgoing},
		})
		if err != nil {
			return err
		}
		transfer.In, err = s.postEntry(ctx, tx, to, postParams{
			entryID:     inID,
			date:        date,
			amount:      req.Amount,
			direction:   DirectionIn,
			description: inDesc,
			categoryID:  category.ID,
			transfer:    &TransferLink{TransferID: transfer.ID, CounterpartEntryID: outID, Direction: TransferIncoming},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if catalogChanged {
		s.invalidateCatalog(ctx)
	}

	s.logger.InfoContext(ctx, "transfer_created", "transfer_id", transfer.ID,
		"from_account_id", req.FromAccountID, "to_account_id", req.ToAccountID, "caller", CallerFromContext(ctx))
	return transfer, nil
}

func transferDescriptions(desc string, from, to *Account) (string, string) {
	desc = strings.TrimSpace(desc)
	if desc != "" {
		return desc, desc
	}
	return "Transfer to " + to.Name, "Transfer from " + from.Name
}

func assembleTransfer(id string, entries []*Entry) *Transfer {
	t := &Transfer{ID: id}
	for _, e := range entries {
		if e.Transfer == nil {
			continue
		}
		switch e.Transfer.Direction {
		case TransferOutgoing:
			t.Out = e
		case TransferIncoming:
			t.In = e
		}
	}
	return t
}

// GetTransfer returns both sides of a transfer. An orphaned transfer has one side nil.
func (s *LedgerService) GetTransfer(ctx context.Context, transferID string) (*Transfer, error) {
	var t *Transfer
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		entries, err := tx.EntriesByTransfer(ctx, transferID)
		if err != nil {
			return fmt.Errorf("failed to load transfer entries: %w", err)
		}
		if len(entries) == 0 {
			return NotFound("transfer", transferID)
		}
		t = assembleTransfer(transferID, entries)
		return nil
	})
	return t, err
}

// ListTransfers returns transfers touching accountID, or all transfers when it is empty
func (s *LedgerService) ListTransfers(ctx context.Context, accountID string) ([]*Transfer, error) {
	var out []*Transfer
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if accountID != "" {
			if _, err := tx.GetAccount(ctx, accountID, false); err != nil {
				return err
			}
		}
		entries, err := tx.ListTransferEntries(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to list transfer entries: %w", err)
		}
		grouped := map[string][]*Entry{}
		var order []string
		for _, e := range entries {
			id := e.Transfer.TransferID
			if _, ok := grouped[id]; !ok {
				order = append(order, id)
			}
			grouped[id] = append(grouped[id], e)
		}
		for _, id := range order {
			out = append(out, assembleTransfer(id, grouped[id]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Transfer{}
	}
	return out, nil
}

// DeleteTransfer removes every entry of a transfer and reverses each balance
// effect in one transaction
func (s *LedgerService) DeleteTransfer(ctx context.Context, transferID string) (*TransferDeletion, error) {
	out := &TransferDeletion{TransferID: transferID}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		entries, err := tx.EntriesByTransfer(ctx, transferID)
		if err != nil {
			return fmt.Errorf("failed to load transfer entries: %w", err)
		}
		if len(entries) == 0 {
			return NotFound("transfer", transferID)
		}
		for _, e := range entries {
			if err := s.removeEntry(ctx, tx, e); err != nil {
				return err
			}
			out.DeletedEntryIDs = append(out.DeletedEntryIDs, e.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out.DeletedEntryIDs)

	s.logger.InfoContext(ctx, "transfer_deleted", "transfer_id", transferID,
		"entries", len(out.DeletedEntryIDs), "caller", CallerFromContext(ctx))
	return out, nil
}
