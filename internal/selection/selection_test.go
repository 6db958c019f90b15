package selection

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ledger-core/internal/ledger"
)

// fakeBackend serves counts from a fixed id population
type fakeBackend struct {
	matching []string
	applied  []ledger.SelectionDescriptor
	changes  []ledger.Changeset
	err      error
}

func (f *fakeBackend) CountEntries(ctx context.Context, filter ledger.EntryFilter) (int, error) {
	return len(f.matching), nil
}

func (f *fakeBackend) CountEntriesAmong(ctx context.Context, filter ledger.EntryFilter, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if slices.Contains(f.matching, id) {
			n++
		}
	}
	return n, nil
}

func (f *fakeBackend) BulkUpdate(ctx context.Context, sel ledger.SelectionDescriptor, changes ledger.Changeset) (*ledger.BulkUpdateResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.applied = append(f.applied, sel)
	f.changes = append(f.changes, changes)
	return &ledger.BulkUpdateResult{SelectionMode: sel.Mode, UpdatedCount: 1}, nil
}

var clearChange = ledger.Changeset{ReconciliationStatus: ledger.StatusManuallyCleared}

func TestTransitions(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, KindInactive, e.State().Kind())

	require.NoError(t, e.EnterBulkMode())
	assert.Equal(t, ActiveIndividual{}, e.State())

	require.NoError(t, e.ToggleMember("a", true))
	require.NoError(t, e.ToggleMember("b", true))
	require.NoError(t, e.ToggleMember("a", true))
	assert.Equal(t, ActiveIndividual{IDs: []string{"a", "b"}}, e.State())

	require.NoError(t, e.ToggleMember("a", false))
	assert.Equal(t, ActiveIndividual{IDs: []string{"b"}}, e.State())

	filter := ledger.EntryFilter{Search: "rent"}
	e.SetFilter(filter)
	require.NoError(t, e.SelectAll())
	assert.Equal(t, ActiveAllExcept{Filter: filter}, e.State())

	require.NoError(t, e.ToggleMember("x", false))
	assert.Equal(t, ActiveAllExcept{Filter: filter, Excluded: []string{"x"}}, e.State())
	require.NoError(t, e.ToggleMember("x", true))
	assert.Equal(t, ActiveAllExcept{Filter: filter, Excluded: []string{}}, e.State())

	require.NoError(t, e.ClearSelection())
	assert.Equal(t, ActiveIndividual{}, e.State())

	e.ExitBulkMode()
	assert.Equal(t, Inactive{}, e.State())
}

func TestInvalidTransitions(t *testing.T) {
	e := NewEngine()

	var te *InvalidTransitionError
	require.ErrorAs(t, e.SelectAll(), &te)
	assert.Equal(t, KindInactive, te.From)
	assert.Equal(t, "select_all", te.Transition)

	assert.Error(t, e.ClearSelection())
	assert.Error(t, e.ToggleMember("a", true))
	assert.Error(t, e.Stage(clearChange))
	_, err := e.Descriptor()
	assert.Error(t, err)

	require.NoError(t, e.EnterBulkMode())
	assert.Error(t, e.EnterBulkMode())

	require.NoError(t, e.SelectAll())
	assert.Error(t, e.SelectAll())
}

func TestSetFilterResetsAllExcept(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.EnterBulkMode())
	require.NoError(t, e.ToggleMember("a", true))

	e.SetFilter(ledger.EntryFilter{Search: "a"})
	assert.Equal(t, ActiveIndividual{IDs: []string{"a"}}, e.State())

	require.NoError(t, e.SelectAll())
	e.SetFilter(ledger.EntryFilter{Search: "b"})
	assert.Equal(t, ActiveIndividual{}, e.State())
	assert.Equal(t, "b", e.Filter().Search)
}

func TestStateIsACopy(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.EnterBulkMode())
	require.NoError(t, e.ToggleMember("a", true))

	s := e.State().(ActiveIndividual)
	s.IDs[0] = "mutated"
	assert.Equal(t, ActiveIndividual{IDs: []string{"a"}}, e.State())
}

func TestResolvedCountIgnoresExclusionsOutsideFilter(t *testing.T) {
	b := &fakeBackend{matching: []string{"e1", "e2", "e3"}}
	e := NewEngine()
	require.NoError(t, e.EnterBulkMode())
	require.NoError(t, e.SelectAll())
	require.NoError(t, e.ToggleMember("e2", false))
	require.NoError(t, e.ToggleMember("elsewhere", false))

	n, err := e.ResolvedCount(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// the population grows between selection and apply
	b.matching = append(b.matching, "e4")
	n, err = e.ResolvedCount(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestApplyMergesStagedChanges(t *testing.T) {
	b := &fakeBackend{matching: []string{"e1"}}
	e := NewEngine()
	require.NoError(t, e.EnterBulkMode())
	require.NoError(t, e.ToggleMember("e1", true))
	require.NoError(t, e.Stage(ledger.Changeset{Category: &ledger.CategoryChange{CategoryID: "food"}}))

	res, err := e.Apply(context.Background(), b, clearChange)
	require.NoError(t, err)
	assert.Equal(t, ledger.SelectionIndividual, res.SelectionMode)

	require.Len(t, b.changes, 1)
	assert.Equal(t, "food", b.changes[0].Category.CategoryID)
	assert.Equal(t, ledger.StatusManuallyCleared, b.changes[0].ReconciliationStatus)
	assert.Equal(t, []string{"e1"}, b.applied[0].IDs)

	assert.Equal(t, ActiveIndividual{}, e.State())
	assert.True(t, e.Staged().IsEmpty())
}

func TestApplyGuards(t *testing.T) {
	b := &fakeBackend{matching: []string{"e1"}}
	e := NewEngine()
	require.NoError(t, e.EnterBulkMode())

	_, err := e.Apply(context.Background(), b, ledger.Changeset{})
	assert.ErrorIs(t, err, ledger.ErrNoChanges)

	_, err = e.Apply(context.Background(), b, clearChange)
	assert.ErrorIs(t, err, ledger.ErrEmptySelection)

	require.NoError(t, e.SelectAll())
	require.NoError(t, e.ToggleMember("e1", false))
	_, err = e.Apply(context.Background(), b, clearChange)
	assert.ErrorIs(t, err, ledger.ErrEmptySelection)
	assert.Empty(t, b.applied)
}

func TestApplyFailureKeepsSelection(t *testing.T) {
	b := &fakeBackend{matching: []string{"e1"}, err: errors.New("store down")}
	e := NewEngine()
	require.NoError(t, e.EnterBulkMode())
	require.NoError(t, e.ToggleMember("e1", true))
	require.NoError(t, e.Stage(clearChange))

	_, err := e.Apply(context.Background(), b, ledger.Changeset{})
	require.Error(t, err)
	assert.Equal(t, ActiveIndividual{IDs: []string{"e1"}}, e.State())
	assert.False(t, e.Staged().IsEmpty())
}
