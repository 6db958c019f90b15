package ledger

import (
	"context"
	"fmt"
)

// SelectionMode says how a selection names its entries
type SelectionMode string

const (
	SelectionIndividual        SelectionMode = "individual"
	SelectionAllFilteredExcept SelectionMode = "all_filtered_except"
)

// SelectionDescriptor names a set of entries without materialising it.
// Individual selections list ids; all-filtered-except selections carry a
// filter and the ids excluded from it.
type SelectionDescriptor struct {
	Mode     SelectionMode `json:"mode"`
	IDs      []string      `json:"ids,omitempty"`
	Filter   EntryFilter   `json:"filter"`
	Excluded []string      `json:"excluded,omitempty"`
}

// CategoryChange sets the category of every selected entry; "" clears it
type CategoryChange struct {
	CategoryID string `json:"category_id"`
}

// Changeset is a partial update applied to every entry of a selection
type Changeset struct {
	Category             *CategoryChange      `json:"category,omitempty"`
	ReconciliationStatus ReconciliationStatus `json:"reconciliation_status,omitempty"`
}

// IsEmpty reports whether the changeset changes nothing
func (c Changeset) IsEmpty() bool {
	return c.Category == nil && c.ReconciliationStatus == ""
}

// Merge overlays the fields set in o onto c
func (c Changeset) Merge(o Changeset) Changeset {
	if o.Category != nil {
		cat := *o.Category
		c.Category = &cat
	}
	if o.ReconciliationStatus != "" {
		c.ReconciliationStatus = o.ReconciliationStatus
	}
	return c
}

func (c Changeset) reconcileAction() (ReconcileAction, error) {
	switch c.ReconciliationStatus {
	case "":
		return "", nil
	case StatusManuallyCleared:
		return ActionMarkCleared, nil
	case StatusUnmatched:
		return ActionMarkUncleared, nil
	case StatusMatched:
		return "", InvalidInput("reconciliation_status", "matched is set by statement matching and cannot be applied in bulk")
	default:
		return "", InvalidInput("reconciliation_status", fmt.Sprintf("unknown reconciliation status %q", c.ReconciliationStatus))
	}
}

// BulkUpdateResult reports the outcome of applying a changeset to a selection
type BulkUpdateResult struct {
	UpdatedCount   int              `json:"updated_count"`
	SelectionMode  SelectionMode    `json:"selection_mode"`
	Message        string           `json:"message"`
	Reconciliation *ReconcileResult `json:"reconciliation,omitempty"`
}

// CountSelection resolves how many entries a selection names right now
func (s *LedgerService) CountSelection(ctx context.Context, sel SelectionDescriptor) (int, error) {
	switch sel.Mode {
	case SelectionIndividual:
		return len(dedupe(sel.IDs)), nil
	case SelectionAllFilteredExcept:
		total, err := s.CountEntries(ctx, sel.Filter)
		if err != nil {
			return 0, err
		}
		excluded, err := s.CountEntriesAmong(ctx, sel.Filter, sel.Excluded)
		if err != nil {
			return 0, err
		}
		return max(total-excluded, 0), nil
	default:
		return 0, InvalidInput("mode", fmt.Sprintf("unknown selection mode %q", sel.Mode))
	}
}

// resolveSelection materialises the selection against the current entries
func resolveSelection(ctx context.Context, tx Tx, sel SelectionDescriptor) ([]*Entry, error) {
	switch sel.Mode {
	case SelectionIndividual:
		ids := dedupe(sel.IDs)
		if len(ids) == 0 {
			return nil, nil
		}
		return loadAll(ctx, tx, ids)
	case SelectionAllFilteredExcept:
		f, err := sel.Filter.Normalize()
		if err != nil {
			return nil, err
		}
		ids, err := tx.EntryIDs(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve selection: %w", err)
		}
		excluded := make(map[string]struct{}, len(sel.Excluded))
		for _, id := range sel.Excluded {
			excluded[id] = struct{}{}
		}
		kept := ids[:0]
		for _, id := range ids {
			if _, ok := excluded[id]; !ok {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			return nil, nil
		}
		return loadAll(ctx, tx, kept)
	default:
		return nil, InvalidInput("mode", fmt.Sprintf("unknown selection mode %q", sel.Mode))
	}
}

// BulkUpdate resolves the selection and applies the changeset to every entry
// in one transaction. Reconciliation changes follow BulkReconcile rules.
func (s *LedgerService) BulkUpdate(ctx context.Context, sel SelectionDescriptor, changes Changeset) (*BulkUpdateResult, error) {
	if changes.IsEmpty() {
		return nil, &Error{Code: CodeNoChanges, Message: "no changes to apply"}
	}
	action, err := changes.reconcileAction()
	if err != nil {
		return nil, err
	}

	result := &BulkUpdateResult{SelectionMode: sel.Mode}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if changes.Category != nil && changes.Category.CategoryID != "" {
			if _, err := s.requireCategory(ctx, tx, changes.Category.CategoryID); err != nil {
				return err
			}
		}
		entries, err := resolveSelection(ctx, tx, sel)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return &Error{Code: CodeEmptySelection, Message: "selection resolves to no entries"}
		}
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}

		updated := map[string]struct{}{}
		if changes.Category != nil {
			for _, chunk := range chunkIDs(ids) {
				if _, err := tx.SetEntriesCategory(ctx, chunk, changes.Category.CategoryID); err != nil {
					return &BatchError{Operation: "bulk_update", FailedID: chunk[0], Unresolved: ids, Err: err}
				}
			}
			for _, id := range ids {
				updated[id] = struct{}{}
			}
		}
		if action != "" {
			rec, err := s.reconcile(ctx, tx, entries, action)
			if err != nil {
				return err
			}
			result.Reconciliation = rec
			skipped := make(map[string]struct{}, len(rec.SkippedEntries))
			for _, sk := range rec.SkippedEntries {
				skipped[sk.ID] = struct{}{}
			}
			for _, id := range ids {
				if _, ok := skipped[id]; !ok {
					updated[id] = struct{}{}
				}
			}
			for _, id := range rec.TransferEntriesIncluded {
				if _, ok := skipped[id]; !ok {
					updated[id] = struct{}{}
				}
			}
		}
		result.UpdatedCount = len(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Message = fmt.Sprintf("Updated %d entries", result.UpdatedCount)
	s.logger.InfoContext(ctx, "bulk_update", "mode", sel.Mode, "updated", result.UpdatedCount, "caller", CallerFromContext(ctx))
	return result, nil
}
