package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ReconcileAction is a bulk reconciliation command
type ReconcileAction string

const (
	ActionMarkCleared   ReconcileAction = "mark_cleared"
	ActionMarkUncleared ReconcileAction = "mark_uncleared"
)

// bulkChunkSize bounds the number of ids bound into a single statement
const bulkChunkSize = 500

// SkippedEntry is an entry left untouched by a bulk operation
type SkippedEntry struct {
	ID          string `json:"id"`
	Reason      Code   `json:"reason"`
	Description string `json:"description"`
}

// ReconcileResult reports the exact outcome of a bulk reconciliation
type ReconcileResult struct {
	UpdatedCount            int             `json:"updated_count"`
	SkippedCount            int             `json:"skipped_count"`
	TotalRequested          int             `json:"total_requested"`
	TransferEntriesIncluded []string        `json:"transfer_entries_included"`
	SkippedEntries          []SkippedEntry  `json:"skipped_entries"`
	ActionPerformed         ReconcileAction `json:"action_performed"`
}

func validateReconcileAction(a ReconcileAction) error {
	if a != ActionMarkCleared && a != ActionMarkUncleared {
		return InvalidInput("action", fmt.Sprintf("action must be %q or %q", ActionMarkCleared, ActionMarkUncleared))
	}
	return nil
}

// BulkReconcile marks entries cleared or uncleared. Matched entries are
// skipped, and the counterpart of every selected transfer side is included.
func (s *LedgerService) BulkReconcile(ctx context.Context, ids []string, action ReconcileAction) (*ReconcileResult, error) {
	if err := validateReconcileAction(action); err != nil {
		return nil, err
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, &Error{Code: CodeEmptySelection, Message: "no entries selected"}
	}

	var result *ReconcileResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		entries, err := loadAll(ctx, tx, ids)
		if err != nil {
			return err
		}
		result, err = s.reconcile(ctx, tx, entries, action)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "bulk_reconcile", "action", action, "updated", result.UpdatedCount,
		"skipped", result.SkippedCount, "caller", CallerFromContext(ctx))
	return result, nil
}

// loadAll returns the entries for ids in request order, failing with NotFound
// naming every missing id
func loadAll(ctx context.Context, tx Tx, ids []string) ([]*Entry, error) {
	byID := make(map[string]*Entry, len(ids))
	for _, chunk := range chunkIDs(ids) {
		found, err := tx.GetEntries(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to load entries: %w", err)
		}
		for _, e := range found {
			byID[e.ID] = e
		}
	}
	var missing []string
	out := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, e)
	}
	if len(missing) > 0 {
		return nil, &Error{
			Code:    CodeNotFound,
			Entity:  "entry",
			ID:      strings.Join(missing, ","),
			Message: fmt.Sprintf("entries not found: %s", strings.Join(missing, ", ")),
		}
	}
	return out, nil
}

func (s *LedgerService) reconcile(ctx context.Context, tx Tx, requested []*Entry, action ReconcileAction) (*ReconcileResult, error) {
	result := &ReconcileResult{
		TotalRequested:          len(requested),
		TransferEntriesIncluded: []string{},
		SkippedEntries:          []SkippedEntry{},
		ActionPerformed:         action,
	}

	selected := make(map[string]struct{}, len(requested))
	for _, e := range requested {
		selected[e.ID] = struct{}{}
	}
	var counterpartIDs []string
	for _, e := range requested {
		if e.Transfer == nil || e.Transfer.CounterpartEntryID == "" {
			continue
		}
		cid := e.Transfer.CounterpartEntryID
		if _, ok := selected[cid]; ok {
			continue
		}
		selected[cid] = struct{}{}
		counterpartIDs = append(counterpartIDs, cid)
	}

	all := append([]*Entry{}, requested...)
	for _, chunk := range chunkIDs(counterpartIDs) {
		found, err := tx.GetEntries(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to load transfer counterparts: %w", err)
		}
		for _, e := range found {
			all = append(all, e)
			result.TransferEntriesIncluded = append(result.TransferEntriesIncluded, e.ID)
		}
	}
	sort.Strings(result.TransferEntriesIncluded)

	var targets []string
	for _, e := range all {
		if e.IsMatched {
			result.SkippedEntries = append(result.SkippedEntries, SkippedEntry{
				ID:          e.ID,
				Reason:      CodeAlreadyMatched,
				Description: e.Description,
			})
			continue
		}
		targets = append(targets, e.ID)
	}
	result.SkippedCount = len(result.SkippedEntries)

	cleared := action == ActionMarkCleared
	for _, chunk := range chunkIDs(targets) {
		n, err := tx.SetEntriesCleared(ctx, chunk, cleared)
		if err != nil {
			return nil, &BatchError{Operation: "bulk_reconcile", FailedID: chunk[0], Unresolved: targets, Err: err}
		}
		result.UpdatedCount += n
	}
	return result, nil
}

// MarkMatched records that an entry corresponds to an external statement line
func (s *LedgerService) MarkMatched(ctx context.Context, entryID string) (*Entry, error) {
	return s.setMatched(ctx, entryID, true)
}

// Unmatch reverts a matched entry; its manual-clear flag is kept
func (s *LedgerService) Unmatch(ctx context.Context, entryID string) (*Entry, error) {
	return s.setMatched(ctx, entryID, false)
}

func (s *LedgerService) setMatched(ctx context.Context, entryID string, matched bool) (*Entry, error) {
	var entry *Entry
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		e, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		e.IsMatched = matched
		e.UpdatedAt = s.now().UTC()
		if err := tx.UpdateEntry(ctx, e); err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "entry_match_changed", "entry_id", entryID, "matched", matched, "caller", CallerFromContext(ctx))
	return entry, nil
}

func chunkIDs(ids []string) [][]string {
	var out [][]string
	for len(ids) > bulkChunkSize {
		out = append(out, ids[:bulkChunkSize])
		ids = ids[bulkChunkSize:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
