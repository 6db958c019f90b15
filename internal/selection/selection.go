// Package selection models bulk selection of ledger entries as an explicit
// state machine. A selection is either inactive, an explicit list of ids, or
// "everything matching the current filter except some ids". Ids for the
// latter are only materialised by the backend when a changeset is applied.
package selection

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/example/ledger-core/internal/ledger"
)

// Kind names a selection state
type Kind string

const (
	KindInactive   Kind = "inactive"
	KindIndividual Kind = "individual"
	KindAllExcept  Kind = "all_filtered_except"
)

// State is one of Inactive, ActiveIndividual or ActiveAllExcept
type State interface {
	Kind() Kind
	isState()
}

// Inactive means bulk mode is off
type Inactive struct{}

// ActiveIndividual selects an explicit, ordered set of entry ids
type ActiveIndividual struct {
	IDs []string
}

// ActiveAllExcept selects every entry matching Filter except Excluded
type ActiveAllExcept struct {
	Filter   ledger.EntryFilter
	Excluded []string
}

func (Inactive) Kind() Kind         { return KindInactive }
func (ActiveIndividual) Kind() Kind { return KindIndividual }
func (ActiveAllExcept) Kind() Kind  { return KindAllExcept }

func (Inactive) isState()         {}
func (ActiveIndividual) isState() {}
func (ActiveAllExcept) isState()  {}

// InvalidTransitionError reports a transition the current state does not allow
type InvalidTransitionError struct {
	From       Kind
	Transition string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid selection transition %s from state %s", e.Transition, e.From)
}

// Backend counts and updates entries on behalf of the engine.
// *ledger.LedgerService satisfies it.
type Backend interface {
	CountEntries(ctx context.Context, filter ledger.EntryFilter) (int, error)
	CountEntriesAmong(ctx context.Context, filter ledger.EntryFilter, ids []string) (int, error)
	BulkUpdate(ctx context.Context, sel ledger.SelectionDescriptor, changes ledger.Changeset) (*ledger.BulkUpdateResult, error)
}

// Engine holds one selection at a time. It is safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	state  State
	filter ledger.EntryFilter
	staged ledger.Changeset
	// gen changes on every transition so Apply can tell whether the
	// selection moved while the backend was working
	gen uint64
}

// NewEngine returns an engine in the Inactive state
func NewEngine() *Engine {
	return &Engine{state: Inactive{}}
}

// State returns a copy of the current state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneState(e.state)
}

// Filter returns the listing filter the engine would select all against
func (e *Engine) Filter() ledger.EntryFilter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filter
}

// Staged returns the changeset accumulated by Stage
func (e *Engine) Staged() ledger.Changeset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.staged
}

func (e *Engine) set(s State) {
	e.state = s
	e.gen++
}

func (e *Engine) active() bool {
	return e.state.Kind() != KindInactive
}

// EnterBulkMode starts an empty individual selection
func (e *Engine) EnterBulkMode() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active() {
		return &InvalidTransitionError{From: e.state.Kind(), Transition: "enter_bulk_mode"}
	}
	e.set(ActiveIndividual{})
	return nil
}

// SelectAll switches an individual selection to every entry matching the
// current filter, with nothing excluded
func (e *Engine) SelectAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Kind() != KindIndividual {
		return &InvalidTransitionError{From: e.state.Kind(), Transition: "select_all"}
	}
	e.set(ActiveAllExcept{Filter: e.filter})
	return nil
}

// ClearSelection empties the selection without leaving bulk mode
func (e *Engine) ClearSelection() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active() {
		return &InvalidTransitionError{From: KindInactive, Transition: "clear_selection"}
	}
	e.set(ActiveIndividual{})
	return nil
}

// ToggleMember selects or deselects one entry. In all-except mode
// deselecting adds the id to the exclusions.
func (e *Engine) ToggleMember(id string, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch s := e.state.(type) {
	case ActiveIndividual:
		e.set(ActiveIndividual{IDs: toggle(s.IDs, id, on)})
	case ActiveAllExcept:
		e.set(ActiveAllExcept{Filter: s.Filter, Excluded: toggle(s.Excluded, id, !on)})
	default:
		return &InvalidTransitionError{From: e.state.Kind(), Transition: "toggle_member"}
	}
	return nil
}

// ExitBulkMode discards the selection and any staged changeset
func (e *Engine) ExitBulkMode() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set(Inactive{})
	e.staged = ledger.Changeset{}
}

// SetFilter records the listing filter. An all-except selection was made
// against the old filter, so it falls back to an empty individual selection.
func (e *Engine) SetFilter(f ledger.EntryFilter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter = f
	if e.state.Kind() == KindAllExcept {
		e.set(ActiveIndividual{})
	}
}

// Stage merges changes into the pending changeset
func (e *Engine) Stage(changes ledger.Changeset) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active() {
		return &InvalidTransitionError{From: KindInactive, Transition: "stage"}
	}
	e.staged = e.staged.Merge(changes)
	return nil
}

// Descriptor returns the selection in the form the ledger resolves
func (e *Engine) Descriptor() (ledger.SelectionDescriptor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.descriptor()
}

func (e *Engine) descriptor() (ledger.SelectionDescriptor, error) {
	switch s := e.state.(type) {
	case ActiveIndividual:
		return ledger.SelectionDescriptor{Mode: ledger.SelectionIndividual, IDs: slices.Clone(s.IDs)}, nil
	case ActiveAllExcept:
		return ledger.SelectionDescriptor{
			Mode:     ledger.SelectionAllFilteredExcept,
			Filter:   s.Filter,
			Excluded: slices.Clone(s.Excluded),
		}, nil
	default:
		return ledger.SelectionDescriptor{}, &InvalidTransitionError{From: e.state.Kind(), Transition: "describe"}
	}
}

// ResolvedCount returns how many entries the selection names right now.
// For all-except selections it is the filter's current total minus the
// excluded ids that still match the filter.
func (e *Engine) ResolvedCount(ctx context.Context, b Backend) (int, error) {
	desc, err := e.Descriptor()
	if err != nil {
		return 0, err
	}
	return resolvedCount(ctx, b, desc)
}

func resolvedCount(ctx context.Context, b Backend, desc ledger.SelectionDescriptor) (int, error) {
	if desc.Mode == ledger.SelectionIndividual {
		return len(desc.IDs), nil
	}
	total, err := b.CountEntries(ctx, desc.Filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count filtered entries: %w", err)
	}
	excluded := 0
	if len(desc.Excluded) > 0 {
		excluded, err = b.CountEntriesAmong(ctx, desc.Filter, desc.Excluded)
		if err != nil {
			return 0, fmt.Errorf("failed to count excluded entries: %w", err)
		}
	}
	return max(total-excluded, 0), nil
}

// Apply applies the staged changeset, overlaid with changes, to the
// selection. On success the selection is cleared unless it changed while
// the update was running.
func (e *Engine) Apply(ctx context.Context, b Backend, changes ledger.Changeset) (*ledger.BulkUpdateResult, error) {
	e.mu.Lock()
	desc, err := e.descriptor()
	merged := e.staged.Merge(changes)
	gen := e.gen
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if merged.IsEmpty() {
		return nil, &ledger.Error{Code: ledger.CodeNoChanges, Message: "no changes to apply"}
	}

	n, err := resolvedCount(ctx, b, desc)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &ledger.Error{Code: ledger.CodeEmptySelection, Message: "no entries selected"}
	}

	res, err := b.BulkUpdate(ctx, desc, merged)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.gen == gen {
		e.set(ActiveIndividual{})
		e.staged = ledger.Changeset{}
	}
	e.mu.Unlock()
	return res, nil
}

func toggle(ids []string, id string, present bool) []string {
	out := slices.Clone(ids)
	i := slices.Index(out, id)
	switch {
	case present && i < 0:
		out = append(out, id)
	case !present && i >= 0:
		out = slices.Delete(out, i, i+1)
	}
	return out
}

func cloneState(s State) State {
	switch v := s.(type) {
	case ActiveIndividual:
		return ActiveIndividual{IDs: slices.Clone(v.IDs)}
	case ActiveAllExcept:
		return ActiveAllExcept{Filter: v.Filter, Excluded: slices.Clone(v.Excluded)}
	default:
		return s
	}
}
