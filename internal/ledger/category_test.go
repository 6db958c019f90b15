package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return NewCatalog(CatalogSnapshot{
		Groups: []CategoryGroup{
			{ID: "g-living", Name: "living", Type: CategoryTypeExpense},
			{ID: "g-bills", Name: "Bills", Type: CategoryTypeExpense},
			{ID: "g-salary", Name: "Salary", Type: CategoryTypeIncome},
			{ID: "g-moves", Name: "Transfers", Type: CategoryTypeTransfer},
		},
		Categories: []Category{
			{ID: "c-rent", Name: "Rent", GroupID: "g-living"},
			{ID: "c-food", Name: "food", GroupID: "g-living"},
			{ID: "c-power", Name: "Power", GroupID: "g-bills"},
			{ID: "c-pay", Name: "Paycheck", GroupID: "g-salary"},
			{ID: "c-xfer", Name: "Transfer", GroupID: "g-moves"},
		},
	})
}

func TestResolveCategory(t *testing.T) {
	catalog := testCatalog()

	eff := ResolveCategory(&Entry{CategoryID: "c-rent"}, catalog)
	assert.Equal(t, EffectiveDirect, eff.Kind)
	assert.Equal(t, "Rent", eff.CategoryName)
	assert.Equal(t, CategoryTypeExpense, eff.CategoryType)
	assert.Equal(t, "living", eff.GroupName)

	none := ResolveCategory(&Entry{}, catalog)
	assert.Equal(t, EffectiveCategory{Kind: EffectiveUncategorized, CategoryName: UncategorizedName}, none)
}

func TestResolveCategoryStaleReferenceIsUncategorized(t *testing.T) {
	eff := ResolveCategory(&Entry{CategoryID: "deleted"}, testCatalog())
	assert.Equal(t, EffectiveUncategorized, eff.Kind)
	assert.Equal(t, UncategorizedName, eff.CategoryName)
	assert.Empty(t, eff.CategoryID)
}

func TestResolveCategoryWithoutCatalog(t *testing.T) {
	eff := ResolveCategory(&Entry{CategoryID: "c-rent"}, nil)
	assert.Equal(t, EffectiveUncategorized, eff.Kind)
}

func TestCatalogDerivesTypeFromGroup(t *testing.T) {
	c := NewCatalog(CatalogSnapshot{
		Groups:     []CategoryGroup{{ID: "g", Name: "Salary", Type: CategoryTypeIncome}},
		Categories: []Category{{ID: "c", Name: "Bonus", GroupID: "g", Type: CategoryTypeExpense, GroupName: "stale"}},
	})
	cat, ok := c.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, CategoryTypeIncome, cat.Type)
	assert.Equal(t, "Salary", cat.GroupName)
}

func TestCatalogOrdering(t *testing.T) {
	got := testCatalog().Categories("")
	names := make([]string, len(got))
	for i, c := range got {
		names[i] = c.Name
	}
	// INCOME first, then EXPENSE groups by case-insensitive name, then TRANSFER
	assert.Equal(t, []string{"Paycheck", "Power", "food", "Rent", "Transfer"}, names)
}

func TestCatalogCategoriesByType(t *testing.T) {
	got := testCatalog().Categories(CategoryTypeExpense)
	require.Len(t, got, 3)
	for _, c := range got {
		assert.Equal(t, CategoryTypeExpense, c.Type)
	}
}

func TestCompareCategoriesIsTotalOnTies(t *testing.T) {
	a := Category{Name: "Misc", GroupName: "Other", Type: CategoryTypeExpense}
	b := Category{Name: "misc", GroupName: "other", Type: CategoryTypeExpense}
	assert.NotZero(t, CompareCategories(a, b))
	assert.Equal(t, -CompareCategories(a, b), CompareCategories(b, a))
	assert.Zero(t, CompareCategories(a, a))
}

func TestSnapshotRoundTrip(t *testing.T) {
	orig := testCatalog()
	again := NewCatalog(orig.Snapshot())
	assert.Equal(t, orig.Categories(""), again.Categories(""))

	g, ok := again.Group("g-bills")
	require.True(t, ok)
	assert.Equal(t, "Bills", g.Name)
}
