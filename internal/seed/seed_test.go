package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ledger-core/internal/ledger"
)

func TestDefaults(t *testing.T) {
	groups, err := Defaults()
	require.NoError(t, err)
	require.NotEmpty(t, groups)

	byType := map[ledger.CategoryType]int{}
	for _, g := range groups {
		byType[g.Type]++
	}
	assert.Positive(t, byType[ledger.CategoryTypeIncome])
	assert.Positive(t, byType[ledger.CategoryTypeExpense])

	var transfers *ledger.GroupSpec
	for i := range groups {
		if groups[i].Name == ledger.SystemGroupName {
			transfers = &groups[i]
		}
	}
	require.NotNil(t, transfers)
	assert.Equal(t, ledger.CategoryTypeTransfer, transfers.Type)
	assert.Contains(t, transfers.Categories, ledger.TransferCategoryName)
	assert.Contains(t, transfers.Categories, ledger.OpeningBalanceCategoryName)
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := Parse([]byte("groups:\n  - name: Odd\n    type: EQUITY\n"))
	assert.ErrorContains(t, err, "EQUITY")

	_, err = Parse([]byte("groups:\n  - type: INCOME\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("groups: [oops"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("groups:\n  - name: Pets\n    type: EXPENSE\n    categories: [Food, Vet]\n"), 0o600))

	groups, err := Load(path)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"Food", "Vet"}, groups[0].Categories)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
